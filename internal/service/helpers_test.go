package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"fitlife/plan-service/internal/cache"
	"fitlife/plan-service/internal/config"
	"fitlife/plan-service/internal/domain"
	"fitlife/plan-service/internal/logging"
	"fitlife/plan-service/internal/provider"
	"fitlife/plan-service/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- fake plan repository ---

type fakePlanRepo struct {
	mu            sync.Mutex
	plans         map[primitive.ObjectID]domain.Plan
	insertErr     error
	deactivateErr error
	dueErr        error
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{plans: make(map[primitive.ObjectID]domain.Plan)}
}

func (r *fakePlanRepo) Insert(ctx context.Context, plan *domain.Plan) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return primitive.NilObjectID, r.insertErr
	}
	plan.ID = primitive.NewObjectID()
	plan.CreatedAt = time.Now().UTC()
	plan.UpdatedAt = plan.CreatedAt
	r.plans[plan.ID] = *plan
	return plan.ID, nil
}

func (r *fakePlanRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *fakePlanRepo) GetActiveByUser(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType) (*domain.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plans {
		if p.UserID == userID && p.Type == planType && p.IsActive {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakePlanRepo) DeactivateActive(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deactivateErr != nil {
		return r.deactivateErr
	}
	for id, p := range r.plans {
		if p.UserID == userID && p.Type == planType && p.IsActive {
			p.IsActive = false
			r.plans[id] = p
		}
	}
	return nil
}

func (r *fakePlanRepo) SetInactive(ctx context.Context, userID, planID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[planID]
	if !ok || p.UserID != userID || !p.IsActive {
		return repository.ErrNotFound
	}
	p.IsActive = false
	r.plans[planID] = p
	return nil
}

func (r *fakePlanRepo) FindDueForRefresh(ctx context.Context, now time.Time) ([]domain.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dueErr != nil {
		return nil, r.dueErr
	}
	var due []domain.Plan
	for _, p := range r.plans {
		if p.IsActive && !p.NextRefreshDate.After(now) {
			due = append(due, p)
		}
	}
	sort.Slice(due, func(i, k int) bool { return due[i].NextRefreshDate.Before(due[k].NextRefreshDate) })
	return due, nil
}

func (r *fakePlanRepo) RescheduleRefresh(ctx context.Context, id primitive.ObjectID, next time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.NextRefreshDate = next
	r.plans[id] = p
	return nil
}

func (r *fakePlanRepo) CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.plans {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakePlanRepo) snapshot() map[primitive.ObjectID]domain.Plan {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[primitive.ObjectID]domain.Plan, len(r.plans))
	for id, p := range r.plans {
		out[id] = p
	}
	return out
}

func (r *fakePlanRepo) restore(snap map[primitive.ObjectID]domain.Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans = snap
}

// activePlans returns the user's active plans of one type, for invariant checks.
func (r *fakePlanRepo) activePlans(userID primitive.ObjectID, planType domain.PlanType) []domain.Plan {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Plan
	for _, p := range r.plans {
		if p.UserID == userID && p.Type == planType && p.IsActive {
			out = append(out, p)
		}
	}
	return out
}

// --- fake user repository ---

type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[primitive.ObjectID]domain.User
	setRefErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[primitive.ObjectID]domain.User)}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) SetActivePlanRef(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType, planID primitive.ObjectID, macros *domain.MacroSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setRefErr != nil {
		return r.setRefErr
	}
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	id := planID
	switch planType {
	case domain.PlanTypeWorkout:
		u.ActivePlans.WorkoutPlanID = &id
	case domain.PlanTypeDiet:
		u.ActivePlans.DietPlanID = &id
		u.Macros = macros
	}
	r.users[userID] = u
	return nil
}

func (r *fakeUserRepo) ClearActivePlanRef(ctx context.Context, userID primitive.ObjectID, planType domain.PlanType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	switch planType {
	case domain.PlanTypeWorkout:
		u.ActivePlans.WorkoutPlanID = nil
	case domain.PlanTypeDiet:
		u.ActivePlans.DietPlanID = nil
		u.Macros = nil
	}
	r.users[userID] = u
	return nil
}

func (r *fakeUserRepo) put(u domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *fakeUserRepo) get(id primitive.ObjectID) domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func (r *fakeUserRepo) snapshot() map[primitive.ObjectID]domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[primitive.ObjectID]domain.User, len(r.users))
	for id, u := range r.users {
		out[id] = u
	}
	return out
}

func (r *fakeUserRepo) restore(snap map[primitive.ObjectID]domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = snap
}

// --- fake transaction runner ---

// fakeTx mimics transactional semantics over the in-memory fakes: state is
// snapshotted before fn and restored if fn fails, so a failed write leaves
// nothing behind.
type fakeTx struct {
	plans *fakePlanRepo
	users *fakeUserRepo
}

func (t *fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	planSnap := t.plans.snapshot()
	userSnap := t.users.snapshot()
	if err := fn(ctx); err != nil {
		t.plans.restore(planSnap)
		t.users.restore(userSnap)
		return err
	}
	return nil
}

// --- fake cache ---

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]domain.Plan
	getErr  error
	setErr  error
	delErr  error
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]domain.Plan)}
}

func cacheKey(userID string, planType domain.PlanType) string {
	return string(planType) + ":" + userID
}

func (c *fakeCache) GetPlan(ctx context.Context, userID string, planType domain.PlanType) (*domain.Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	p, ok := c.entries[cacheKey(userID, planType)]
	if !ok {
		return nil, cache.ErrMiss
	}
	return &p, nil
}

func (c *fakeCache) SetPlan(ctx context.Context, userID string, plan *domain.Plan, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[cacheKey(userID, plan.Type)] = *plan
	c.sets++
	return nil
}

func (c *fakeCache) DeletePlan(ctx context.Context, userID string, planType domain.PlanType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.delErr != nil {
		return c.delErr
	}
	delete(c.entries, cacheKey(userID, planType))
	return nil
}

func (c *fakeCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]domain.Plan)
}

func (c *fakeCache) peek(userID string, planType domain.PlanType) (domain.Plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[cacheKey(userID, planType)]
	return p, ok
}

// --- fake provider ---

type fakeProvider struct {
	mu          sync.Mutex
	calls       int
	err         error
	failUserIDs map[string]bool
	gate        chan struct{} // when set, Generate blocks until closed
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{failUserIDs: make(map[string]bool)}
}

func (p *fakeProvider) Generate(ctx context.Context, req provider.GenerationRequest) (*provider.GenerationResult, error) {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if p.failUserIDs[req.UserID] {
		return nil, provider.ErrGenerationFailed
	}
	p.calls++

	result := &provider.GenerationResult{
		PlanID: fmt.Sprintf("plan-%d", p.calls),
	}
	switch req.PlanType {
	case domain.PlanTypeWorkout:
		result.Workout = &domain.WorkoutPayload{Days: []domain.WorkoutDay{
			{Day: "monday", Exercises: []domain.PlanExercise{{Name: "squat", Sets: 5, Reps: 5}}},
		}}
	case domain.PlanTypeDiet:
		result.Diet = &domain.DietPayload{
			Days:   []domain.MealDay{{Day: "monday", Meals: []domain.Meal{{Name: "breakfast", Title: "oats", Calories: 420}}}},
			Macros: domain.MacroTargets{Calories: 2200, ProteinG: 160, CarbsG: 220, FatG: 70},
		}
	}
	return result, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// --- fake archiver ---

type fakeArchiver struct {
	mu       sync.Mutex
	archived []domain.Plan
	err      error
}

func (a *fakeArchiver) ArchivePlan(ctx context.Context, plan *domain.Plan) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.archived = append(a.archived, *plan)
	return nil
}

// --- test environment ---

type testEnv struct {
	plans    *fakePlanRepo
	users    *fakeUserRepo
	cache    *fakeCache
	provider *fakeProvider
	archiver *fakeArchiver
	svc      *planService
	job      *RefreshJob

	mu  sync.Mutex
	now time.Time
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		plans:    newFakePlanRepo(),
		users:    newFakeUserRepo(),
		cache:    newFakeCache(),
		provider: newFakeProvider(),
		archiver: &fakeArchiver{},
		now:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	logger := logging.New(logging.Config{Level: "error"})
	tx := &fakeTx{plans: env.plans, users: env.users}
	ttl := config.TTLConfig{WorkoutPlans: 3600, DietPlans: 1800}

	env.svc = NewPlanService(env.plans, env.users, tx, env.cache, env.provider, env.archiver, ttl, logger).(*planService)
	env.svc.now = env.clock

	env.job = NewRefreshJob(env.plans, env.users, env.svc, config.RefreshConfig{
		Schedule:       "30 3 * * *",
		PacingInterval: 0,
		FailureBackoff: 7 * 24 * time.Hour,
	}, logger)
	env.job.now = env.clock
	env.job.sleep = func(ctx context.Context, d time.Duration) {}

	return env
}

func completeProfile() domain.Profile {
	return domain.Profile{
		Age: 32, Gender: "m", HeightCm: 180, WeightKg: 82,
		Goal: domain.GoalGainMuscle, ActivityLevel: "high",
	}
}

func (e *testEnv) addUser(t *testing.T) primitive.ObjectID {
	t.Helper()
	u := domain.User{
		ID:      primitive.NewObjectID(),
		Name:    "test user",
		Email:   fmt.Sprintf("%s@example.com", primitive.NewObjectID().Hex()),
		Profile: completeProfile(),
	}
	e.users.put(u)
	return u.ID
}
