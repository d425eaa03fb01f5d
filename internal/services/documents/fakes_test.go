package documents

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docintel/constants"
	"github.com/joseph-ayodele/docintel/internal/async"
	"github.com/joseph-ayodele/docintel/internal/blob"
	"github.com/joseph-ayodele/docintel/internal/common"
	"github.com/joseph-ayodele/docintel/internal/entity"
	"github.com/joseph-ayodele/docintel/internal/repository"
)

// memDB is an in-memory stand-in for the tenant-scoped repositories. Every
// lookup is keyed by tenant, so a foreign tenant sees nothing.
type memDB struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*entity.DocumentProfile
	jobs     map[uuid.UUID]*entity.DocumentJob
	items    map[uuid.UUID][]*entity.DocumentItem

	// completeErrAt fails CompleteWithItems while inserting that item index.
	completeErrAt int
	// completeErr fails CompleteWithItems before any insert.
	completeErr error
	fails       []entity.Failure
}

func newMemDB() *memDB {
	return &memDB{
		profiles:      map[uuid.UUID]*entity.DocumentProfile{},
		jobs:          map[uuid.UUID]*entity.DocumentJob{},
		items:         map[uuid.UUID][]*entity.DocumentItem{},
		completeErrAt: -1,
	}
}

func notFound(what string) error {
	return common.NewAppError(common.CodeNotFound, what+" not found", common.ErrNotFound)
}

type memProfiles struct{ db *memDB }

func (r memProfiles) Get(_ context.Context, tenantID, id uuid.UUID) (*entity.DocumentProfile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.profiles[id]
	if !ok || p.TenantID != tenantID {
		return nil, notFound("document profile")
	}
	cp := *p
	return &cp, nil
}

func (r memProfiles) List(_ context.Context, tenantID uuid.UUID, activeOnly bool) ([]*entity.DocumentProfile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.DocumentProfile
	for _, p := range r.db.profiles {
		if p.TenantID == tenantID && (!activeOnly || p.IsActive) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProfileKey < out[j].ProfileKey })
	return out, nil
}

func (r memProfiles) Create(_ context.Context, p *entity.DocumentProfile) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.db.profiles[p.ID] = p
	return true, nil
}

func (r memProfiles) Deactivate(_ context.Context, tenantID, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.profiles[id]
	if !ok || p.TenantID != tenantID {
		return notFound("document profile")
	}
	p.IsActive = false
	return nil
}

type memJobs struct{ db *memDB }

func (r memJobs) Create(_ context.Context, job *entity.DocumentJob) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.CreatedAt = time.Now()
	cp := *job
	r.db.jobs[job.ID] = &cp
	return nil
}

func (r memJobs) get(tenantID, id uuid.UUID) (*entity.DocumentJob, error) {
	j, ok := r.db.jobs[id]
	if !ok || j.TenantID != tenantID {
		return nil, notFound("document job")
	}
	return j, nil
}

func (r memJobs) Get(_ context.Context, tenantID, id uuid.UUID) (*entity.DocumentJob, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	j, err := r.get(tenantID, id)
	if err != nil {
		return nil, err
	}
	cp := *j
	return &cp, nil
}

func (r memJobs) transition(tenantID, id uuid.UUID, next constants.JobStatus) (*entity.DocumentJob, error) {
	j, err := r.get(tenantID, id)
	if err != nil {
		return nil, err
	}
	if !j.Status.CanTransitionTo(next) {
		return nil, common.NewAppError(common.CodeInvalidStateTransition,
			fmt.Sprintf("job %s cannot move from %s to %s", id, j.Status, next), nil)
	}
	return j, nil
}

func (r memJobs) MarkExtracting(_ context.Context, tenantID, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	j, err := r.transition(tenantID, id, constants.JobStatusExtracting)
	if err != nil {
		return err
	}
	j.Status = constants.JobStatusExtracting
	return nil
}

func (r memJobs) CompleteWithItems(_ context.Context, tenantID, id uuid.UUID, items []*entity.DocumentItem) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.completeErr != nil {
		return r.db.completeErr
	}
	// stage everything, publish only on success
	staged := make([]*entity.DocumentItem, 0, len(items))
	for _, it := range items {
		if it.ItemIndex == r.db.completeErrAt {
			return common.NewAppError(common.CodePersistenceFailed, "persistence failed",
				fmt.Errorf("insert item %d: %w", it.ItemIndex, common.ErrDatabase))
		}
		cp := *it
		cp.ID = uuid.New()
		cp.TenantID = tenantID
		cp.DocumentJobID = id
		staged = append(staged, &cp)
	}
	j, err := r.transition(tenantID, id, constants.JobStatusCompleted)
	if err != nil {
		return err
	}
	now := time.Now()
	j.Status = constants.JobStatusCompleted
	j.ItemCount = len(staged)
	j.CompletedAt = &now
	r.db.items[id] = staged
	return nil
}

func (r memJobs) Fail(_ context.Context, tenantID, id uuid.UUID, failure entity.Failure) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	j, err := r.transition(tenantID, id, constants.JobStatusFailed)
	if err != nil {
		return err
	}
	j.Status = constants.JobStatusFailed
	j.FailureCode = &failure.Code
	j.FailureMessage = &failure.Message
	r.db.fails = append(r.db.fails, failure)
	return nil
}

type memItems struct{ db *memDB }

func (r memItems) List(_ context.Context, tenantID, jobID uuid.UUID, f repository.ItemFilter) ([]*entity.DocumentItem, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, err := (memJobs{r.db}).get(tenantID, jobID); err != nil {
		return nil, err
	}
	var out []*entity.DocumentItem
	for _, it := range r.db.items[jobID] {
		if it.ItemIndex < f.FromIndex || (f.NeedsReviewOnly && !it.NeedsReview) {
			continue
		}
		cp := *it
		out = append(out, &cp)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r memItems) MarkReviewed(_ context.Context, tenantID, jobID uuid.UUID, idx int, rv entity.ItemReview) (*entity.DocumentItem, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, err := (memJobs{r.db}).get(tenantID, jobID); err != nil {
		return nil, err
	}
	for _, it := range r.db.items[jobID] {
		if it.ItemIndex != idx {
			continue
		}
		if it.IsReviewed {
			return nil, common.NewAppError(common.CodeAlreadyReviewed, "item already reviewed", nil)
		}
		at := rv.At
		it.IsReviewed = true
		it.ReviewedBy = &rv.Reviewer
		it.ReviewedAt = &at
		it.ReviewNotes = &rv.Notes
		cp := *it
		return &cp, nil
	}
	return nil, notFound("document item")
}

type memBlobs map[string][]byte

func (b memBlobs) Get(_ context.Context, p string) ([]byte, error) {
	data, ok := b[p]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return data, nil
}

func (b memBlobs) Put(_ context.Context, p string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b[p] = data
	return nil
}

func (b memBlobs) Delete(_ context.Context, p string) error {
	delete(b, p)
	return nil
}

type fakeQueue struct {
	jobs []async.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Shutdown(context.Context) {}

type countingMetrics struct {
	mu       sync.Mutex
	finished map[string]int
	triaged  map[entity.ReviewPriority]int
	extracts int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{finished: map[string]int{}, triaged: map[entity.ReviewPriority]int{}}
}

func (m *countingMetrics) JobFinished(status constants.JobStatus, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[string(status)+"/"+code]++
}

func (m *countingMetrics) ItemTriaged(p entity.ReviewPriority, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triaged[p]++
}

func (m *countingMetrics) ObserveExtraction(time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extracts++
}
