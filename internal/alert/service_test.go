package alert_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/alert"
	"rollcall/internal/alert/store"
	"rollcall/internal/threat"
	id "rollcall/pkg/domain"
)

type fakeSink struct {
	mu        sync.Mutex
	name      string
	err       error
	delivered []alert.SecurityAlert
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Deliver(_ context.Context, a alert.SecurityAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, a)
	return f.err
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func TestNotifyPersistsAndFansOut(t *testing.T) {
	st := store.NewInMemoryStore()
	email := &fakeSink{name: "email"}
	kafka := &fakeSink{name: "kafka"}
	svc := alert.New(st, alert.WithSink(email), alert.WithSink(kafka))

	user := id.NewUserID()
	svc.Notify(context.Background(), threat.Alert{
		UserID:  user,
		Event:   threat.EventSpoofing,
		Score:   6,
		Details: map[string]any{"similarity": 0.35},
	})
	svc.Flush()

	recent, err := st.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, user, recent[0].UserID)
	assert.Equal(t, threat.EventSpoofing, recent[0].Event)
	assert.Equal(t, 6, recent[0].Score)
	assert.False(t, recent[0].Resolved, "new alerts start unresolved")

	assert.Equal(t, 1, email.count())
	assert.Equal(t, 1, kafka.count())
}

func TestSinkFailureDoesNotBlockOthers(t *testing.T) {
	broken := &fakeSink{name: "email", err: errors.New("smtp down")}
	healthy := &fakeSink{name: "kafka"}
	svc := alert.New(store.NewInMemoryStore(), alert.WithSink(broken), alert.WithSink(healthy))

	svc.Notify(context.Background(), threat.Alert{UserID: id.NewUserID(), Event: threat.EventReplay, Score: 5})
	svc.Flush()

	assert.Equal(t, 1, healthy.count())
}

func TestNilSinksAreIgnored(t *testing.T) {
	svc := alert.New(store.NewInMemoryStore(), alert.WithSink(nil))

	svc.Notify(context.Background(), threat.Alert{UserID: id.NewUserID(), Event: threat.EventBruteForce, Score: 5})
	svc.Flush()
}
