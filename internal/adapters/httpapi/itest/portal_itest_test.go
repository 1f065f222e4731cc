package itest

import (
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/hemoconecta/donor-portal-api/internal/adapters/httpapi"
)

const admin = "admin|itest"

func registerDonor(t *testing.T, s *testServer, email, bloodType, dob string) string {
	t.Helper()
	status, body, _ := s.doJSON(t, http.MethodPost, "/donors", "", map[string]any{
		"name":             "doador " + email,
		"email":            email,
		"bloodType":        bloodType,
		"dateOfBirth":      dob,
		"consentToMessage": true,
	})
	requireStatus(t, status, body, http.StatusCreated)
	return mustUnmarshal[httpapi.DonorResponse](t, body).Donor.Id
}

func createCampaign(t *testing.T, s *testServer, name string, capacity int) string {
	t.Helper()
	status, body, _ := s.doJSON(t, http.MethodPost, "/admin/campaigns", admin, map[string]any{
		"name":     name,
		"capacity": capacity,
	})
	requireStatus(t, status, body, http.StatusCreated)
	return mustUnmarshal[httpapi.CampaignResponse](t, body).Campaign.Id
}

func TestPortal_AdminRoutesRequireSubject(t *testing.T) {
	for _, b := range backendsFromEnv(t) {
		t.Run(string(b), func(t *testing.T) {
			s := newTestServer(t, b)

			status, body, _ := s.doJSON(t, http.MethodPost, "/admin/campaigns", "", map[string]any{"name": "x", "capacity": 1})
			er := requireErrorCode(t, status, body, http.StatusUnauthorized, "UNAUTHORIZED")
			if er.Error.RequestID == "" {
				t.Fatalf("expected requestId in error envelope: %s", body)
			}
		})
	}
}

func TestPortal_ParticipationLifecycle(t *testing.T) {
	for _, b := range backendsFromEnv(t) {
		t.Run(string(b), func(t *testing.T) {
			s := newTestServer(t, b)

			campaignID := createCampaign(t, s, "Junho Vermelho", 2)
			donorID := registerDonor(t, s, "ana@example.com", "O-", "1990-03-15")

			join := "/campaigns/" + campaignID + "/participants"
			status, body, _ := s.doJSON(t, http.MethodPost, join, "", map[string]any{"donorId": donorID})
			requireStatus(t, status, body, http.StatusCreated)
			jr := mustUnmarshal[httpapi.JoinCampaignResponse](t, body)
			if jr.Tier != "BEGINNER" || jr.CampaignParticipants != 1 {
				t.Fatalf("join=%+v", jr)
			}

			status, body, _ = s.doJSON(t, http.MethodPost, join, "", map[string]any{"donorId": donorID})
			requireErrorCode(t, status, body, http.StatusConflict, "ALREADY_JOINED")

			status, body, _ = s.doJSON(t, http.MethodPost, join, "", map[string]any{"donorId": uuid.NewString()})
			requireErrorCode(t, status, body, http.StatusNotFound, "DONOR_NOT_FOUND")

			status, body, _ = s.doJSON(t, http.MethodGet, "/donors/"+donorID, "", nil)
			requireStatus(t, status, body, http.StatusOK)
			p := mustUnmarshal[httpapi.DonorProfile](t, body)
			if p.ParticipationCount != 1 || len(p.Badges) != 1 {
				t.Fatalf("profile=%+v", p)
			}
			if v, err := p.Donor.PersistedTier.Get(); err != nil || v != "BEGINNER" {
				t.Fatalf("persistedTier=%q err=%v", v, err)
			}

			status, body, _ = s.doJSON(t, http.MethodGet, "/donors/"+donorID+"/participations", "", nil)
			requireStatus(t, status, body, http.StatusOK)
			entries := mustUnmarshal[httpapi.ParticipationListResponse](t, body).Participations
			if len(entries) != 1 || entries[0].CampaignName != "Junho Vermelho" {
				t.Fatalf("entries=%+v", entries)
			}

			leave := join + "/" + donorID
			status, body, _ = s.doJSON(t, http.MethodDelete, leave, "", nil)
			requireStatus(t, status, body, http.StatusOK)
			if lr := mustUnmarshal[httpapi.LeaveCampaignResponse](t, body); lr.Tier != "UNRANKED" || lr.CampaignParticipants != 0 {
				t.Fatalf("leave=%+v", lr)
			}

			status, body, _ = s.doJSON(t, http.MethodDelete, leave, "", nil)
			requireErrorCode(t, status, body, http.StatusNotFound, "PARTICIPATION_NOT_FOUND")

			status, body, _ = s.doJSON(t, http.MethodGet, "/campaigns", "", nil)
			requireStatus(t, status, body, http.StatusOK)
			list := mustUnmarshal[httpapi.CampaignListResponse](t, body)
			if list.Statistics.TotalCampaigns != 1 || list.Statistics.TotalParticipants != 0 || list.Statistics.AvailableSlots != 2 {
				t.Fatalf("statistics=%+v", list.Statistics)
			}
		})
	}
}

func TestPortal_CampaignCapacityHoldsUnderConcurrentJoins(t *testing.T) {
	for _, b := range backendsFromEnv(t) {
		t.Run(string(b), func(t *testing.T) {
			s := newTestServer(t, b)

			campaignID := createCampaign(t, s, "Vagas limitadas", 3)
			ids := make([]string, 8)
			for i := range ids {
				ids[i] = registerDonor(t, s, "d"+string(rune('a'+i))+"@example.com", "A+", "")
			}

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				statuses = map[int]int{}
			)
			for _, id := range ids {
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					status, _, _ := s.doJSON(t, http.MethodPost, "/campaigns/"+campaignID+"/participants", "", map[string]any{"donorId": id})
					mu.Lock()
					statuses[status]++
					mu.Unlock()
				}(id)
			}
			wg.Wait()

			if statuses[http.StatusCreated] != 3 || statuses[http.StatusConflict] != 5 {
				t.Fatalf("statuses=%v, want 3x201 and 5x409", statuses)
			}

			status, body, _ := s.doJSON(t, http.MethodGet, "/campaigns/"+campaignID, "", nil)
			requireStatus(t, status, body, http.StatusOK)
			if c := mustUnmarshal[httpapi.CampaignResponse](t, body).Campaign; c.ParticipantCount != 3 || c.AvailableSlots != 0 {
				t.Fatalf("campaign=%+v", c)
			}
		})
	}
}

func TestPortal_BroadcastToSegment(t *testing.T) {
	for _, b := range backendsFromEnv(t) {
		t.Run(string(b), func(t *testing.T) {
			s := newTestServer(t, b)

			registerDonor(t, s, "r1@example.com", "O-", "1980-01-01")
			registerDonor(t, s, "r2@example.com", "O-", "1981-01-01")
			registerDonor(t, s, "r3@example.com", "O-", "1982-01-01")
			registerDonor(t, s, "other@example.com", "AB+", "1982-01-01")
			s.outbox.FailFor("r2@example.com", "mailbox unavailable")

			req := map[string]any{
				"channel":      "email",
				"subject":      "Precisamos de O-",
				"bodyTemplate": "Olá {{nome}}, venha doar.",
				"segmentation": map[string]any{"bloodTypes": []string{"O-"}, "minAge": 18},
			}
			status, body, _ := s.doJSON(t, http.MethodPost, "/admin/broadcasts", admin, req, httpapi.IdempotencyKeyHeader, "bc-1")
			requireStatus(t, status, body, http.StatusOK)
			sum := mustUnmarshal[httpapi.BroadcastResponse](t, body)
			if sum.Sent != 2 || sum.RecipientsCount != 3 || len(sum.Failed) != 1 || sum.Failed[0].Email != "r2@example.com" {
				t.Fatalf("summary=%+v", sum)
			}

			status, body, h := s.doJSON(t, http.MethodPost, "/admin/broadcasts", admin, req, httpapi.IdempotencyKeyHeader, "bc-1")
			requireStatus(t, status, body, http.StatusOK)
			requireHeader(t, h, "Idempotent-Replayed", "true")
			if n := len(s.outbox.Sent()); n != 2 {
				t.Fatalf("outbox has %d messages after replay, want 2", n)
			}

			req["channel"] = "whatsapp"
			status, body, _ = s.doJSON(t, http.MethodPost, "/admin/broadcasts", admin, req)
			requireErrorCode(t, status, body, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
		})
	}
}
