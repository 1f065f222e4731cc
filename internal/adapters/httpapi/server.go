package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hemoconecta/donor-portal-api/internal/app/broadcast"
	"github.com/hemoconecta/donor-portal-api/internal/app/campaigns"
	"github.com/hemoconecta/donor-portal-api/internal/app/donors"
	"github.com/hemoconecta/donor-portal-api/internal/app/participation"
	"github.com/hemoconecta/donor-portal-api/internal/app/segmentation"
	"github.com/hemoconecta/donor-portal-api/internal/domain"
	clockport "github.com/hemoconecta/donor-portal-api/internal/ports/out/clock"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/idempotency"
)

// Services are the application services the HTTP layer delegates to.
type Services struct {
	Donors        *donors.Service
	Campaigns     *campaigns.Service
	Participation *participation.Service
	Broadcast     *broadcast.Service
}

type Server struct {
	Services

	idem   idempotency.Store
	clk    clockport.Clock
	logger *slog.Logger
}

// NewServer builds the handler set. idem may be nil, which disables Idempotency-Key replay.
func NewServer(svcs Services, idem idempotency.Store, clk clockport.Clock, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Services: svcs,
		idem:     idem,
		clk:      clk,
		logger:   logger.With("component", "httpapi"),
	}
}

// Donors

func (s *Server) RegisterDonor(w http.ResponseWriter, r *http.Request) {
	var body RegisterDonorRequest
	if _, ok := decodeOrReject(w, r, &body); !ok {
		return
	}
	d, err := s.Donors.Register(r.Context(), donors.RegisterInput{
		Name:             body.Name,
		Email:            string(body.Email),
		Phone:            body.Phone,
		BloodType:        body.BloodType,
		Gender:           body.Gender,
		DateOfBirth:      body.DateOfBirth,
		PostalCode:       body.PostalCode,
		Address:          body.Address,
		AlreadyDonated:   body.AlreadyDonated,
		FirstTime:        body.FirstTime,
		Interest:         body.Interest,
		Classification:   body.Classification,
		ConsentToMessage: body.ConsentToMessage,
		ConsentToData:    body.ConsentToData,
	})
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, DonorResponse{Donor: donorFromDomain(d)})
}

func (s *Server) GetDonor(w http.ResponseWriter, r *http.Request) {
	p, err := s.Donors.GetProfile(r.Context(), domain.DonorID(chi.URLParam(r, "donorId")))
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profileFromApp(p))
}

func (s *Server) UpdateDonor(w http.ResponseWriter, r *http.Request) {
	var body UpdateDonorRequest
	if _, ok := decodeOrReject(w, r, &body); !ok {
		return
	}
	d, err := s.Donors.UpdateProfile(r.Context(), domain.DonorID(chi.URLParam(r, "donorId")), updateDonorInputFromRequest(body))
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, DonorResponse{Donor: donorFromDomain(d)})
}

func (s *Server) ListDonorParticipations(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Donors.ListParticipations(r.Context(), domain.DonorID(chi.URLParam(r, "donorId")))
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	out := ParticipationListResponse{Participations: make([]ParticipationEntry, 0, len(entries))}
	for _, e := range entries {
		out.Participations = append(out.Participations, participationEntryFromDomain(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// Campaigns

func (s *Server) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	l, err := s.Campaigns.List(r.Context())
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	out := CampaignListResponse{
		Campaigns: make([]Campaign, 0, len(l.Campaigns)),
		Statistics: CampaignStatistics{
			TotalCampaigns:    l.Statistics.TotalCampaigns,
			TotalParticipants: l.Statistics.TotalParticipants,
			AvailableSlots:    l.Statistics.AvailableSlots,
		},
	}
	for _, c := range l.Campaigns {
		out.Campaigns = append(out.Campaigns, campaignFromDomain(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.Campaigns.Get(r.Context(), domain.CampaignID(chi.URLParam(r, "campaignId")))
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, CampaignResponse{Campaign: campaignFromDomain(c)})
}

func (s *Server) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body CreateCampaignRequest
	if _, ok := decodeOrReject(w, r, &body); !ok {
		return
	}
	c, err := s.Campaigns.Create(r.Context(), campaigns.CreateInput{
		Name:            body.Name,
		BloodTypeTarget: body.BloodTypeTarget,
		Capacity:        body.Capacity,
		Status:          body.Status,
	})
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	s.logger.InfoContext(r.Context(), "campaign created", "campaign_id", c.ID, "subject", subjectOrAnonymous(r.Context()))
	writeJSON(w, http.StatusCreated, CampaignResponse{Campaign: campaignFromDomain(c)})
}

func (s *Server) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var body UpdateCampaignRequest
	if _, ok := decodeOrReject(w, r, &body); !ok {
		return
	}
	c, err := s.Campaigns.Update(r.Context(), domain.CampaignID(chi.URLParam(r, "campaignId")), updateCampaignInputFromRequest(body))
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, CampaignResponse{Campaign: campaignFromDomain(c)})
}

func (s *Server) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id := domain.CampaignID(chi.URLParam(r, "campaignId"))
	if err := s.Campaigns.Delete(r.Context(), id); err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	s.logger.InfoContext(r.Context(), "campaign deleted", "campaign_id", id, "subject", subjectOrAnonymous(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// Participation

func (s *Server) JoinCampaign(w http.ResponseWriter, r *http.Request) {
	var body JoinCampaignRequest
	if _, ok := decodeOrReject(w, r, &body); !ok {
		return
	}
	res, err := s.Participation.Join(r.Context(), domain.DonorID(body.DonorId), domain.CampaignID(chi.URLParam(r, "campaignId")))
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, joinResponseFromApp(res))
}

func (s *Server) LeaveCampaign(w http.ResponseWriter, r *http.Request) {
	res, err := s.Participation.Leave(r.Context(),
		domain.DonorID(chi.URLParam(r, "donorId")),
		domain.CampaignID(chi.URLParam(r, "campaignId")),
	)
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, leaveResponseFromApp(res))
}

// Admin messaging

func (s *Server) PreviewSegment(w http.ResponseWriter, r *http.Request) {
	var body segmentation.Request
	if _, ok := decodeOrReject(w, r, &body); !ok {
		return
	}
	rs, err := s.Broadcast.Preview(r.Context(), body)
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SegmentPreviewResponse{RecipientsCount: len(rs), Recipients: recipientsFromApp(rs)})
}

func (s *Server) SendBroadcast(w http.ResponseWriter, r *http.Request) {
	var body BroadcastRequest
	raw, ok := decodeOrReject(w, r, &body)
	if !ok {
		return
	}
	idem, ok := s.beginIdempotent(w, r, "/admin/broadcasts", raw)
	if !ok {
		return
	}

	sum, err := s.Broadcast.Broadcast(r.Context(), broadcast.Request{
		Channel:      body.Channel,
		Sender:       body.Sender,
		Subject:      body.Subject,
		BodyTemplate: body.BodyTemplate,
		Segmentation: body.Segmentation,
	})
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	s.logger.InfoContext(r.Context(), "broadcast requested",
		"subject", subjectOrAnonymous(r.Context()),
		"recipients", sum.RecipientsCount,
		"sent", sum.Sent,
		"failed", len(sum.Failed),
	)
	s.writeCompleted(w, r, idem, http.StatusOK, broadcastFromApp(sum))
}

func (s *Server) SendEmail(w http.ResponseWriter, r *http.Request) {
	var body SendEmailRequest
	raw, ok := decodeOrReject(w, r, &body)
	if !ok {
		return
	}
	idem, ok := s.beginIdempotent(w, r, "/admin/emails", raw)
	if !ok {
		return
	}
	err := s.Broadcast.SendOne(r.Context(), broadcast.EmailRequest{
		To:      string(body.To),
		Subject: body.Subject,
		Body:    body.Body,
	})
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	s.writeCompleted(w, r, idem, http.StatusOK, SendEmailResponse{Status: "sent"})
}

// writeCompleted writes v and records it for Idempotency-Key replay.
func (s *Server) writeCompleted(w http.ResponseWriter, r *http.Request, idem *idemRequest, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeAppError(w, r, s.logger, err)
		return
	}
	s.complete(r.Context(), idem, status, b)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}
