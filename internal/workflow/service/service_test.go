package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comply/internal/activity"
	activitymem "comply/internal/activity/store/memory"
	"comply/internal/authz"
	"comply/internal/blob"
	"comply/internal/expiry"
	"comply/internal/notify"
	"comply/internal/workflow/models"
	artifactstore "comply/internal/workflow/store/artifact"
	id "comply/pkg/domain"
	dErrors "comply/pkg/domain-errors"
	"comply/pkg/platform/sentinel"
	"comply/pkg/requestcontext"
	"comply/pkg/testutil"
)

type fixture struct {
	svc    *Service
	store  *artifactstore.InMemoryStore
	events *activitymem.InMemoryStore
	queue  *captureQueue
}

// captureQueue records enqueued notifications synchronously so tests can
// assert on them without a worker goroutine.
type captureQueue struct {
	requests []notify.Request
}

func (q *captureQueue) Enqueue(_ context.Context, req notify.Request) {
	q.requests = append(q.requests, req)
}

func newFixture(opts ...Option) *fixture {
	store := artifactstore.NewInMemoryStore()
	events := activitymem.NewInMemoryStore()
	queue := &captureQueue{}
	svc := New(store, activity.NewPublisher(events), authz.NewGate(), queue, opts...)
	return &fixture{svc: svc, store: store, events: events, queue: queue}
}

func authedCtx(principal requestcontext.SessionPrincipal, at time.Time) context.Context {
	ctx := requestcontext.WithPrincipal(context.Background(), principal)
	return requestcontext.WithTime(ctx, at)
}

func partnerPrincipal() requestcontext.SessionPrincipal {
	return requestcontext.SessionPrincipal{
		UserID:    id.NewUserID(),
		CompanyID: id.NewCompanyID(),
		Role:      id.RolePartner,
		SessionID: id.NewSessionID(),
	}
}

func reviewerPrincipal() requestcontext.SessionPrincipal {
	return requestcontext.SessionPrincipal{
		UserID:    id.NewUserID(),
		CompanyID: id.NewCompanyID(),
		Role:      id.RoleReviewer,
		SessionID: id.NewSessionID(),
	}
}

func adminPrincipal() requestcontext.SessionPrincipal {
	return requestcontext.SessionPrincipal{
		UserID:    id.NewUserID(),
		CompanyID: id.NewCompanyID(),
		Role:      id.RoleAdmin,
		SessionID: id.NewSessionID(),
	}
}

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func seedArtifact(t *testing.T, f *fixture, owner requestcontext.SessionPrincipal, kind id.ArtifactKind, status id.Status) *models.Artifact {
	t.Helper()
	artifact := models.NewArtifact(kind, "ISO 27001 certificate", owner.UserID, owner.CompanyID, "", nil, baseTime)
	artifact.Status = status
	require.NoError(t, f.store.Create(context.Background(), artifact))
	return artifact
}

func TestCreateArtifact(t *testing.T) {
	t.Run("partner creates a draft for their own company", func(t *testing.T) {
		f := newFixture()
		owner := partnerPrincipal()
		ctx := authedCtx(owner, baseTime)

		view, err := f.svc.CreateArtifact(ctx, id.KindDocument, "Insurance certificate", "blobs/ins-2026", nil)
		require.NoError(t, err)

		assert.Equal(t, id.StatusDraft, view.Status)
		assert.Equal(t, owner.UserID, view.OwnerID)
		assert.Equal(t, owner.CompanyID, view.CompanyID)
		assert.Equal(t, expiry.Active, view.Expiry)

		events, err := f.events.ListByArtifact(ctx, view.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, activity.ActionCreated, events[0].Action)
		assert.Equal(t, owner.UserID, events[0].ActorID)
	})

	t.Run("title is required", func(t *testing.T) {
		f := newFixture()
		ctx := authedCtx(partnerPrincipal(), baseTime)

		_, err := f.svc.CreateArtifact(ctx, id.KindDocument, "", "", nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("reviewer may not create artifacts", func(t *testing.T) {
		f := newFixture()
		ctx := authedCtx(reviewerPrincipal(), baseTime)

		_, err := f.svc.CreateArtifact(ctx, id.KindDocument, "Policy", "", nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("unauthenticated context is rejected", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.CreateArtifact(context.Background(), id.KindDocument, "Policy", "", nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("file key must reference stored content when a blob store is attached", func(t *testing.T) {
		blobs := blob.NewMemoryStore()
		require.NoError(t, blobs.Put(context.Background(), "blobs/ins-2026", []byte("pdf bytes")))
		f := newFixture(WithBlobStore(blobs))
		ctx := authedCtx(partnerPrincipal(), baseTime)

		view, err := f.svc.CreateArtifact(ctx, id.KindDocument, "Insurance certificate", "blobs/ins-2026", nil)
		require.NoError(t, err)
		assert.Equal(t, "blobs/ins-2026", view.FileKey)

		_, err = f.svc.CreateArtifact(ctx, id.KindDocument, "Insurance certificate", "blobs/missing", nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// TestFullReviewCycle walks a document from draft to approved and checks that
// every step leaves exactly one review event and one notification.
func TestFullReviewCycle(t *testing.T) {
	f := newFixture()
	owner := partnerPrincipal()
	reviewer := reviewerPrincipal()

	steps := []struct {
		actor    requestcontext.SessionPrincipal
		target   id.Status
		action   activity.Action
		template string
	}{
		{owner, id.StatusSubmitted, activity.ActionSubmitted, "artifact_submitted"},
		{reviewer, id.StatusUnderReview, activity.ActionReviewBegan, "artifact_under_review"},
		{reviewer, id.StatusApproved, activity.ActionApproved, "artifact_approved"},
	}

	var artifact *models.Artifact

	testutil.Given(t, "a draft document owned by a partner", func(t *testing.T) {
		artifact = seedArtifact(t, f, owner, id.KindDocument, id.StatusDraft)
	})

	testutil.When(t, "the artifact moves through submission, review, and approval", func(t *testing.T) {
		for i, step := range steps {
			at := baseTime.Add(time.Duration(i+1) * time.Minute)
			view, err := f.svc.RequestTransition(authedCtx(step.actor, at), artifact.ID, step.target)
			require.NoError(t, err, "step %d to %s", i, step.target)
			assert.Equal(t, step.target, view.Status)
		}
	})

	testutil.Then(t, "history lists every step newest first", func(t *testing.T) {
		events, err := f.svc.GetHistory(authedCtx(reviewer, baseTime), artifact.ID)
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, activity.ActionApproved, events[0].Action)
		assert.Equal(t, activity.ActionReviewBegan, events[1].Action)
		assert.Equal(t, activity.ActionSubmitted, events[2].Action)

		// Re-reading history without intervening transitions returns the
		// same sequence.
		again, err := f.svc.GetHistory(authedCtx(reviewer, baseTime), artifact.ID)
		require.NoError(t, err)
		assert.Equal(t, events, again)
	})

	testutil.Then(t, "each step notified the owner exactly once", func(t *testing.T) {
		require.Len(t, f.queue.requests, 3)
		for i, step := range steps {
			assert.Equal(t, step.template, f.queue.requests[i].TemplateID)
			assert.Equal(t, []string{"user:" + owner.UserID.String()}, f.queue.requests[i].Recipients)
		}
	})

	testutil.Then(t, "the reviewer identity is stamped on the artifact", func(t *testing.T) {
		view, err := f.svc.GetArtifact(authedCtx(reviewer, baseTime), artifact.ID)
		require.NoError(t, err)
		require.NotNil(t, view.ReviewerID)
		assert.Equal(t, reviewer.UserID, *view.ReviewerID)
	})
}

func TestRequestTransitionRules(t *testing.T) {
	t.Run("illegal jump is rejected with no event or notification", func(t *testing.T) {
		f := newFixture()
		owner := partnerPrincipal()
		artifact := seedArtifact(t, f, owner, id.KindDocument, id.StatusDraft)

		_, err := f.svc.RequestTransition(authedCtx(owner, baseTime), artifact.ID, id.StatusApproved)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		events, _ := f.events.ListByArtifact(context.Background(), artifact.ID)
		assert.Empty(t, events)
		assert.Empty(t, f.queue.requests)
	})

	t.Run("work permits cannot be resubmitted after rejection", func(t *testing.T) {
		f := newFixture()
		owner := partnerPrincipal()
		artifact := seedArtifact(t, f, owner, id.KindWorkPermit, id.StatusRejected)

		_, err := f.svc.RequestTransition(authedCtx(owner, baseTime), artifact.ID, id.StatusSubmitted)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("documents can be resubmitted after rejection", func(t *testing.T) {
		f := newFixture()
		owner := partnerPrincipal()
		artifact := seedArtifact(t, f, owner, id.KindDocument, id.StatusRejected)

		view, err := f.svc.RequestTransition(authedCtx(owner, baseTime), artifact.ID, id.StatusSubmitted)
		require.NoError(t, err)
		assert.Equal(t, id.StatusSubmitted, view.Status)

		events, _ := f.events.ListByArtifact(context.Background(), artifact.ID)
		require.Len(t, events, 1)
		assert.Equal(t, activity.ActionResubmitted, events[0].Action)
	})

	t.Run("clearing a block records an event but sends nothing", func(t *testing.T) {
		f := newFixture()
		owner := partnerPrincipal()
		admin := adminPrincipal()
		artifact := seedArtifact(t, f, owner, id.KindDocument, id.StatusBlocked)

		view, err := f.svc.RequestTransition(authedCtx(admin, baseTime), artifact.ID, id.StatusSubmitted)
		require.NoError(t, err)
		assert.Equal(t, id.StatusSubmitted, view.Status)

		events, _ := f.events.ListByArtifact(context.Background(), artifact.ID)
		require.Len(t, events, 1)
		assert.Equal(t, activity.ActionUnblocked, events[0].Action)
		assert.Empty(t, f.queue.requests, "silent transition must not notify")
	})

	t.Run("unknown artifact yields not found", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.RequestTransition(authedCtx(partnerPrincipal(), baseTime), id.NewArtifactID(), id.StatusSubmitted)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestRequestTransitionAuthorization(t *testing.T) {
	t.Run("cross-company partner is denied with no side effects", func(t *testing.T) {
		f := newFixture()
		owner := partnerPrincipal()
		intruder := partnerPrincipal()
		artifact := seedArtifact(t, f, owner, id.KindDocument, id.StatusDraft)

		_, err := f.svc.RequestTransition(authedCtx(intruder, baseTime), artifact.ID, id.StatusSubmitted)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

		stored, err := f.store.FindByID(context.Background(), artifact.ID)
		require.NoError(t, err)
		assert.Equal(t, id.StatusDraft, stored.Status)

		events, _ := f.events.ListByArtifact(context.Background(), artifact.ID)
		assert.Empty(t, events)
		assert.Empty(t, f.queue.requests)
	})

	t.Run("only the owner submits, even within the company", func(t *testing.T) {
		f := newFixture()
		owner := partnerPrincipal()
		colleague := owner
		colleague.UserID = id.NewUserID()
		artifact := seedArtifact(t, f, owner, id.KindDocument, id.StatusDraft)

		_, err := f.svc.RequestTransition(authedCtx(colleague, baseTime), artifact.ID, id.StatusSubmitted)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("partner cannot approve", func(t *testing.T) {
		f := newFixture()
		owner := partnerPrincipal()
		artifact := seedArtifact(t, f, owner, id.KindDocument, id.StatusUnderReview)

		_, err := f.svc.RequestTransition(authedCtx(owner, baseTime), artifact.ID, id.StatusApproved)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("reviewer cannot block, admin can", func(t *testing.T) {
		f := newFixture()
		owner := partnerPrincipal()
		artifact := seedArtifact(t, f, owner, id.KindDocument, id.StatusUnderReview)

		_, err := f.svc.RequestTransition(authedCtx(reviewerPrincipal(), baseTime), artifact.ID, id.StatusBlocked)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

		view, err := f.svc.RequestTransition(authedCtx(adminPrincipal(), baseTime), artifact.ID, id.StatusBlocked)
		require.NoError(t, err)
		assert.Equal(t, id.StatusBlocked, view.Status)
	})
}

func TestRequestTransitionConcurrency(t *testing.T) {
	// Two racing transitions from the same state: the store's compare-and-swap
	// lets exactly one apply. The loser surfaces as an invalid transition.
	f := newFixture()
	owner := partnerPrincipal()
	artifact := seedArtifact(t, f, owner, id.KindDocument, id.StatusDraft)

	ctx := authedCtx(owner, baseTime)
	_, err := f.svc.RequestTransition(ctx, artifact.ID, id.StatusSubmitted)
	require.NoError(t, err)

	// Simulate the loser: the artifact moved underneath it.
	_, err = f.store.UpdateStatus(context.Background(), artifact.ID, id.StatusDraft, id.StatusSubmitted, id.UserID{}, baseTime)
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	events, _ := f.events.ListByArtifact(context.Background(), artifact.ID)
	assert.Len(t, events, 1, "only the winning transition is recorded")
}

func TestActivityFailureDoesNotRevertTransition(t *testing.T) {
	store := artifactstore.NewInMemoryStore()
	queue := &captureQueue{}
	failures := 0
	svc := New(store, activity.NewPublisher(failingEventStore{}), authz.NewGate(), queue,
		WithActivityFailureHook(func() { failures++ }),
	)

	owner := partnerPrincipal()
	artifact := models.NewArtifact(id.KindDocument, "Policy", owner.UserID, owner.CompanyID, "", nil, baseTime)
	require.NoError(t, store.Create(context.Background(), artifact))

	view, err := svc.RequestTransition(authedCtx(owner, baseTime), artifact.ID, id.StatusSubmitted)
	require.NoError(t, err, "review log failure must not fail the transition")
	assert.Equal(t, id.StatusSubmitted, view.Status)
	assert.Equal(t, 1, failures)
	assert.Len(t, queue.requests, 1, "notification still fires")
}

type failingEventStore struct{}

func (failingEventStore) Append(context.Context, activity.Event) error {
	return errors.New("event store down")
}

func (failingEventStore) ListByArtifact(context.Context, id.ArtifactID) ([]activity.Event, error) {
	return nil, errors.New("event store down")
}

func (failingEventStore) ListRecent(context.Context, int) ([]activity.Event, error) {
	return nil, errors.New("event store down")
}

func TestListArtifacts(t *testing.T) {
	t.Run("partner listing is narrowed to their company", func(t *testing.T) {
		f := newFixture()
		owner := partnerPrincipal()
		other := partnerPrincipal()
		seedArtifact(t, f, owner, id.KindDocument, id.StatusDraft)
		seedArtifact(t, f, other, id.KindDocument, id.StatusDraft)

		views, err := f.svc.ListArtifacts(authedCtx(owner, baseTime), models.Filter{})
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, owner.CompanyID, views[0].CompanyID)
	})

	t.Run("reviewer sees across companies", func(t *testing.T) {
		f := newFixture()
		seedArtifact(t, f, partnerPrincipal(), id.KindDocument, id.StatusSubmitted)
		seedArtifact(t, f, partnerPrincipal(), id.KindWorkPermit, id.StatusSubmitted)

		views, err := f.svc.ListArtifacts(authedCtx(reviewerPrincipal(), baseTime), models.Filter{Status: id.StatusSubmitted})
		require.NoError(t, err)
		assert.Len(t, views, 2)
	})

	t.Run("expiring filter annotates classifications", func(t *testing.T) {
		f := newFixture()
		owner := partnerPrincipal()
		soon := baseTime.Add(5 * 24 * time.Hour)
		artifact := models.NewArtifact(id.KindWorkPermit, "Permit", owner.UserID, owner.CompanyID, "", &soon, baseTime)
		require.NoError(t, f.store.Create(context.Background(), artifact))

		views, err := f.svc.ListArtifacts(authedCtx(owner, baseTime), models.Filter{})
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, expiry.ExpiringSoon, views[0].Expiry)
	})

	t.Run("expiring filter anchors on the request clock", func(t *testing.T) {
		f := newFixture()
		owner := partnerPrincipal()
		soon := baseTime.Add(5 * 24 * time.Hour)
		artifact := models.NewArtifact(id.KindWorkPermit, "Permit", owner.UserID, owner.CompanyID, "", &soon, baseTime)
		require.NoError(t, f.store.Create(context.Background(), artifact))

		views, err := f.svc.ListArtifacts(authedCtx(owner, baseTime), models.Filter{ExpiringWithin: 7 * 24 * time.Hour})
		require.NoError(t, err)
		assert.Len(t, views, 1)

		// Five days of lead time is outside a one-day window at the same
		// frozen instant.
		views, err = f.svc.ListArtifacts(authedCtx(owner, baseTime), models.Filter{ExpiringWithin: 24 * time.Hour})
		require.NoError(t, err)
		assert.Empty(t, views)
	})
}

func TestGetArtifactScoping(t *testing.T) {
	f := newFixture()
	owner := partnerPrincipal()
	intruder := partnerPrincipal()
	artifact := seedArtifact(t, f, owner, id.KindDocument, id.StatusDraft)

	_, err := f.svc.GetArtifact(authedCtx(intruder, baseTime), artifact.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	view, err := f.svc.GetArtifact(authedCtx(owner, baseTime), artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, artifact.ID, view.ID)
}

func TestRecentActivity(t *testing.T) {
	f := newFixture()
	owner := partnerPrincipal()
	artifact := seedArtifact(t, f, owner, id.KindDocument, id.StatusDraft)

	_, err := f.svc.RequestTransition(authedCtx(owner, baseTime), artifact.ID, id.StatusSubmitted)
	require.NoError(t, err)

	t.Run("admin reads the feed", func(t *testing.T) {
		events, err := f.svc.RecentActivity(authedCtx(adminPrincipal(), baseTime), 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, activity.ActionSubmitted, events[0].Action)
	})

	t.Run("non-admin is denied", func(t *testing.T) {
		_, err := f.svc.RecentActivity(authedCtx(owner, baseTime), 10)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}
