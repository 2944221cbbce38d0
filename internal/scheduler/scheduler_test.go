package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calebhs/pushcast/internal/dispatch"
	"github.com/calebhs/pushcast/internal/models"
)

type stubSource struct {
	mu      sync.Mutex
	due     []models.Notification
	dueErr  error
	claimed map[string]bool
	failed  []string
}

func (s *stubSource) DueScheduled(ctx context.Context, now time.Time) ([]models.Notification, error) {
	return s.due, s.dueErr
}

func (s *stubSource) ClaimScheduled(ctx context.Context, campaignID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed == nil {
		s.claimed = make(map[string]bool)
	}
	if s.claimed[campaignID] {
		return false, nil
	}
	s.claimed[campaignID] = true
	return true, nil
}

func (s *stubSource) MarkFailed(ctx context.Context, campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, campaignID)
	return nil
}

type stubSender struct {
	mu      sync.Mutex
	sent    []dispatch.SendRequest
	sendErr error
}

func (s *stubSender) Send(ctx context.Context, req dispatch.SendRequest) (dispatch.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return dispatch.SendResult{}, s.sendErr
	}
	s.sent = append(s.sent, req)
	return dispatch.SendResult{SentCount: 1, TotalTargeted: 1}, nil
}

func dueCampaign(id string) models.Notification {
	return models.Notification{
		BaseModel: models.BaseModel{ID: id},
		WebsiteID: "website-1",
		Title:     "Scheduled",
		Body:      "It is time",
		Status:    models.StatusScheduled,
	}
}

func TestRunOnceDispatchesDueCampaigns(t *testing.T) {
	source := &stubSource{due: []models.Notification{dueCampaign("c1"), dueCampaign("c2")}}
	sender := &stubSender{}

	s, err := New(source, sender)
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	require.Len(t, sender.sent, 2)
	require.Equal(t, "c1", sender.sent[0].CampaignID)
	require.Equal(t, "website-1", sender.sent[0].WebsiteID)
	require.Equal(t, "Scheduled", sender.sent[0].Payload.Title)
}

func TestRunOnceClaimsOnce(t *testing.T) {
	source := &stubSource{due: []models.Notification{dueCampaign("c1")}}
	sender := &stubSender{}

	s, err := New(source, sender)
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	// The campaign stays in the due list of the stub, but the claim is
	// already spent. A second tick must not send it again.
	require.NoError(t, s.RunOnce(context.Background()))
	require.Len(t, sender.sent, 1)
}

func TestRunOnceMarksFailedOnSendError(t *testing.T) {
	source := &stubSource{due: []models.Notification{dueCampaign("c1"), dueCampaign("c2")}}
	sender := &stubSender{sendErr: errors.New("finalize failed")}

	s, err := New(source, sender)
	require.NoError(t, err)

	err = s.RunOnce(context.Background())
	require.Error(t, err)
	require.ElementsMatch(t, []string{"c1", "c2"}, source.failed)
}

func TestRunOnceListError(t *testing.T) {
	source := &stubSource{dueErr: errors.New("db gone")}
	s, err := New(source, &stubSender{})
	require.NoError(t, err)

	require.Error(t, s.RunOnce(context.Background()))
}

func TestStartAndStop(t *testing.T) {
	source := &stubSource{due: []models.Notification{dueCampaign("c1")}}
	sender := &stubSender{}

	s, err := New(source, sender, WithSchedule("@every 10ms"))
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()))

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 1
	}, time.Second, 10*time.Millisecond)

	s.Stop()
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, &stubSender{})
	require.Error(t, err)
	_, err = New(&stubSource{}, nil)
	require.Error(t, err)
}
