package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/hemoconecta/donor-portal-api/internal/app/broadcast"
	"github.com/hemoconecta/donor-portal-api/internal/app/campaigns"
	"github.com/hemoconecta/donor-portal-api/internal/app/donors"
	"github.com/hemoconecta/donor-portal-api/internal/app/participation"
	"github.com/hemoconecta/donor-portal-api/internal/app/segmentation"
	"github.com/hemoconecta/donor-portal-api/internal/domain"
)

// Donors

type RegisterDonorRequest struct {
	Name             string              `json:"name"`
	Email            openapi_types.Email `json:"email"`
	Phone            string              `json:"phone,omitempty"`
	BloodType        string              `json:"bloodType"`
	Gender           string              `json:"gender,omitempty"`
	DateOfBirth      string              `json:"dateOfBirth,omitempty"`
	PostalCode       string              `json:"postalCode,omitempty"`
	Address          string              `json:"address,omitempty"`
	AlreadyDonated   bool                `json:"alreadyDonated"`
	FirstTime        bool                `json:"firstTime"`
	Interest         string              `json:"interest,omitempty"`
	Classification   string              `json:"classification,omitempty"`
	ConsentToMessage bool                `json:"consentToMessage"`
	ConsentToData    bool                `json:"consentToData"`
}

type UpdateDonorRequest struct {
	Name             nullable.Nullable[string]              `json:"name,omitempty"`
	Email            nullable.Nullable[openapi_types.Email] `json:"email,omitempty"`
	Phone            nullable.Nullable[string]              `json:"phone,omitempty"`
	BloodType        nullable.Nullable[string]              `json:"bloodType,omitempty"`
	Gender           nullable.Nullable[string]              `json:"gender,omitempty"`
	DateOfBirth      nullable.Nullable[string]              `json:"dateOfBirth,omitempty"`
	PostalCode       nullable.Nullable[string]              `json:"postalCode,omitempty"`
	Address          nullable.Nullable[string]              `json:"address,omitempty"`
	AlreadyDonated   nullable.Nullable[bool]                `json:"alreadyDonated,omitempty"`
	FirstTime        nullable.Nullable[bool]                `json:"firstTime,omitempty"`
	Interest         nullable.Nullable[string]              `json:"interest,omitempty"`
	Classification   nullable.Nullable[string]              `json:"classification,omitempty"`
	ConsentToMessage nullable.Nullable[bool]                `json:"consentToMessage,omitempty"`
	ConsentToData    nullable.Nullable[bool]                `json:"consentToData,omitempty"`
}

type Donor struct {
	Id               string                    `json:"id"`
	Name             string                    `json:"name"`
	Email            string                    `json:"email"`
	Phone            string                    `json:"phone"`
	BloodType        string                    `json:"bloodType"`
	Gender           string                    `json:"gender"`
	DateOfBirth      string                    `json:"dateOfBirth"`
	PostalCode       string                    `json:"postalCode"`
	Address          string                    `json:"address"`
	AlreadyDonated   bool                      `json:"alreadyDonated"`
	FirstTime        bool                      `json:"firstTime"`
	Interest         string                    `json:"interest"`
	Classification   string                    `json:"classification"`
	ConsentToMessage bool                      `json:"consentToMessage"`
	ConsentToData    bool                      `json:"consentToData"`
	PersistedTier    nullable.Nullable[string] `json:"persistedTier"`
	CreatedAt        time.Time                 `json:"createdAt"`
	UpdatedAt        time.Time                 `json:"updatedAt"`
}

type TierProgress struct {
	Tier            string `json:"tier"`
	NextTier        string `json:"nextTier"`
	NextThreshold   int    `json:"nextThreshold"`
	ProgressPercent int    `json:"progressPercent"`
	RemainingToNext int    `json:"remainingToNext"`
}

type DonorProfile struct {
	Donor              Donor        `json:"donor"`
	Tier               string       `json:"tier"`
	Progress           TierProgress `json:"progress"`
	ParticipationCount int          `json:"participationCount"`
	Badges             []string     `json:"badges"`
}

type DonorResponse struct {
	Donor Donor `json:"donor"`
}

type ParticipationEntry struct {
	Id              string    `json:"id"`
	CampaignId      string    `json:"campaignId"`
	CampaignName    string    `json:"campaignName"`
	CampaignStatus  string    `json:"campaignStatus"`
	BloodTypeTarget string    `json:"bloodTypeTarget"`
	JoinedAt        time.Time `json:"joinedAt"`
}

type ParticipationListResponse struct {
	Participations []ParticipationEntry `json:"participations"`
}

// Campaigns

type Campaign struct {
	Id               string    `json:"id"`
	Name             string    `json:"name"`
	BloodTypeTarget  string    `json:"bloodTypeTarget"`
	Capacity         int       `json:"capacity"`
	ParticipantCount int       `json:"participantCount"`
	AvailableSlots   int       `json:"availableSlots"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type CampaignStatistics struct {
	TotalCampaigns    int `json:"totalCampaigns"`
	TotalParticipants int `json:"totalParticipants"`
	AvailableSlots    int `json:"availableSlots"`
}

type CampaignListResponse struct {
	Campaigns  []Campaign         `json:"campaigns"`
	Statistics CampaignStatistics `json:"statistics"`
}

type CampaignResponse struct {
	Campaign Campaign `json:"campaign"`
}

type CreateCampaignRequest struct {
	Name            string `json:"name"`
	BloodTypeTarget string `json:"bloodTypeTarget,omitempty"`
	Capacity        int    `json:"capacity"`
	Status          string `json:"status,omitempty"`
}

type UpdateCampaignRequest struct {
	Name            nullable.Nullable[string] `json:"name,omitempty"`
	BloodTypeTarget nullable.Nullable[string] `json:"bloodTypeTarget,omitempty"`
	Capacity        nullable.Nullable[int]    `json:"capacity,omitempty"`
	Status          nullable.Nullable[string] `json:"status,omitempty"`
}

// Participation

type JoinCampaignRequest struct {
	DonorId string `json:"donorId"`
}

type Participation struct {
	Id         string    `json:"id"`
	DonorId    string    `json:"donorId"`
	CampaignId string    `json:"campaignId"`
	JoinedAt   time.Time `json:"joinedAt"`
}

type JoinCampaignResponse struct {
	Message              string        `json:"message"`
	Participation        Participation `json:"participation"`
	Tier                 string        `json:"tier"`
	Progress             TierProgress  `json:"progress"`
	CampaignParticipants int           `json:"campaignParticipants"`
}

type LeaveCampaignResponse struct {
	Message              string       `json:"message"`
	Tier                 string       `json:"tier"`
	Progress             TierProgress `json:"progress"`
	CampaignParticipants int          `json:"campaignParticipants"`
}

// Segmentation and broadcast

type Recipient struct {
	DonorId   string                 `json:"donorId"`
	Name      string                 `json:"name"`
	Email     string                 `json:"email"`
	BloodType string                 `json:"bloodType"`
	Age       nullable.Nullable[int] `json:"age"`
}

type SegmentPreviewResponse struct {
	RecipientsCount int         `json:"recipientsCount"`
	Recipients      []Recipient `json:"recipients"`
}

type BroadcastRequest struct {
	Channel      string               `json:"channel"`
	Sender       string               `json:"sender,omitempty"`
	Subject      string               `json:"subject,omitempty"`
	BodyTemplate string               `json:"bodyTemplate"`
	Segmentation segmentation.Request `json:"segmentation"`
}

type BroadcastFailure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type BroadcastResponse struct {
	Sent            int                `json:"sent"`
	Failed          []BroadcastFailure `json:"failed"`
	RecipientsCount int                `json:"recipientsCount"`
}

type SendEmailRequest struct {
	To      openapi_types.Email `json:"to"`
	Subject string              `json:"subject"`
	Body    string              `json:"body"`
}

type SendEmailResponse struct {
	Status string `json:"status"`
}

func donorFromDomain(d domain.Donor) Donor {
	out := Donor{
		Id:               string(d.ID),
		Name:             d.Name,
		Email:            d.Email,
		Phone:            d.Phone,
		BloodType:        string(d.BloodType),
		Gender:           d.Gender,
		DateOfBirth:      d.DateOfBirth,
		PostalCode:       d.PostalCode,
		Address:          d.Address,
		AlreadyDonated:   d.AlreadyDonated,
		FirstTime:        d.FirstTime,
		Interest:         d.Interest,
		Classification:   d.Classification,
		ConsentToMessage: d.ConsentToMessage,
		ConsentToData:    d.ConsentToData,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if d.Tier != nil {
		out.PersistedTier = nullable.NewNullableWithValue(string(*d.Tier))
	} else {
		out.PersistedTier = nullable.NewNullNullable[string]()
	}
	return out
}

func tierProgressFromDomain(p domain.TierProgress) TierProgress {
	return TierProgress{
		Tier:            string(p.Tier),
		NextTier:        string(p.NextTier),
		NextThreshold:   p.NextThreshold,
		ProgressPercent: p.ProgressPercent,
		RemainingToNext: p.RemainingToNext,
	}
}

func profileFromApp(p donors.Profile) DonorProfile {
	badges := make([]string, 0, len(p.Badges))
	for _, b := range p.Badges {
		badges = append(badges, string(b))
	}
	return DonorProfile{
		Donor:              donorFromDomain(p.Donor),
		Tier:               string(p.Tier),
		Progress:           tierProgressFromDomain(p.Progress),
		ParticipationCount: p.Participations,
		Badges:             badges,
	}
}

func campaignFromDomain(c domain.Campaign) Campaign {
	return Campaign{
		Id:               string(c.ID),
		Name:             c.Name,
		BloodTypeTarget:  c.BloodTypeTarget,
		Capacity:         c.Capacity,
		ParticipantCount: c.ParticipantCount,
		AvailableSlots:   c.AvailableSlots(),
		Status:           string(c.Status),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func participationEntryFromDomain(e domain.ParticipationEntry) ParticipationEntry {
	return ParticipationEntry{
		Id:              string(e.ID),
		CampaignId:      string(e.CampaignID),
		CampaignName:    e.CampaignName,
		CampaignStatus:  string(e.CampaignStatus),
		BloodTypeTarget: e.BloodTypeTarget,
		JoinedAt:        e.JoinedAt,
	}
}

func participationFromDomain(p domain.Participation) Participation {
	return Participation{
		Id:         string(p.ID),
		DonorId:    string(p.DonorID),
		CampaignId: string(p.CampaignID),
		JoinedAt:   p.JoinedAt,
	}
}

func recipientsFromApp(rs []segmentation.Recipient) []Recipient {
	out := make([]Recipient, 0, len(rs))
	for _, r := range rs {
		rec := Recipient{
			DonorId:   string(r.DonorID),
			Name:      r.Name,
			Email:     r.Email,
			BloodType: string(r.BloodType),
		}
		if r.Age != nil {
			rec.Age = nullable.NewNullableWithValue(*r.Age)
		} else {
			rec.Age = nullable.NewNullNullable[int]()
		}
		out = append(out, rec)
	}
	return out
}

func broadcastFromApp(s broadcast.Summary) BroadcastResponse {
	failed := make([]BroadcastFailure, 0, len(s.Failed))
	for _, f := range s.Failed {
		failed = append(failed, BroadcastFailure{Email: f.Email, Error: f.Error})
	}
	return BroadcastResponse{Sent: s.Sent, Failed: failed, RecipientsCount: s.RecipientsCount}
}

func joinResponseFromApp(res participation.Result) JoinCampaignResponse {
	return JoinCampaignResponse{
		Message:              "Donor registered in campaign.",
		Participation:        participationFromDomain(res.Participation),
		Tier:                 string(res.Tier),
		Progress:             tierProgressFromDomain(res.Progress),
		CampaignParticipants: res.CampaignParticipants,
	}
}

func leaveResponseFromApp(res participation.Result) LeaveCampaignResponse {
	return LeaveCampaignResponse{
		Message:              "Donor removed from campaign.",
		Tier:                 string(res.Tier),
		Progress:             tierProgressFromDomain(res.Progress),
		CampaignParticipants: res.CampaignParticipants,
	}
}

func updateDonorInputFromRequest(b UpdateDonorRequest) donors.UpdateInput {
	return donors.UpdateInput{
		Name:             optionalDonor(b.Name),
		Email:            optionalDonorEmail(b.Email),
		Phone:            optionalDonor(b.Phone),
		BloodType:        optionalDonor(b.BloodType),
		Gender:           optionalDonor(b.Gender),
		DateOfBirth:      optionalDonor(b.DateOfBirth),
		PostalCode:       optionalDonor(b.PostalCode),
		Address:          optionalDonor(b.Address),
		AlreadyDonated:   optionalDonor(b.AlreadyDonated),
		FirstTime:        optionalDonor(b.FirstTime),
		Interest:         optionalDonor(b.Interest),
		Classification:   optionalDonor(b.Classification),
		ConsentToMessage: optionalDonor(b.ConsentToMessage),
		ConsentToData:    optionalDonor(b.ConsentToData),
	}
}

func updateCampaignInputFromRequest(b UpdateCampaignRequest) campaigns.UpdateInput {
	return campaigns.UpdateInput{
		Name:            optionalCampaign(b.Name),
		BloodTypeTarget: optionalCampaign(b.BloodTypeTarget),
		Capacity:        optionalCampaign(b.Capacity),
		Status:          optionalCampaign(b.Status),
	}
}

func optionalDonor[T any](n nullable.Nullable[T]) donors.Optional[T] {
	if !n.IsSpecified() {
		return donors.Unspecified[T]()
	}
	if n.IsNull() {
		return donors.Null[T]()
	}
	v, err := n.Get()
	if err != nil {
		return donors.Unspecified[T]()
	}
	return donors.Some(v)
}

func optionalDonorEmail(n nullable.Nullable[openapi_types.Email]) donors.Optional[string] {
	if !n.IsSpecified() {
		return donors.Unspecified[string]()
	}
	if n.IsNull() {
		return donors.Null[string]()
	}
	v, err := n.Get()
	if err != nil {
		return donors.Unspecified[string]()
	}
	return donors.Some(string(v))
}

func optionalCampaign[T any](n nullable.Nullable[T]) campaigns.Optional[T] {
	if !n.IsSpecified() {
		return campaigns.Unspecified[T]()
	}
	if n.IsNull() {
		return campaigns.Null[T]()
	}
	v, err := n.Get()
	if err != nil {
		return campaigns.Unspecified[T]()
	}
	return campaigns.Some(v)
}
