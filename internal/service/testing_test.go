package service

import (
	"context"
	"sort"
	"time"

	"github.com/clockwise-hq/be-ts-approvals/internal/client"
	"github.com/clockwise-hq/be-ts-approvals/internal/common/errors"
	"github.com/clockwise-hq/be-ts-approvals/internal/common/logger"
	"github.com/clockwise-hq/be-ts-approvals/internal/repository"
)

// In-memory fakes standing in for the postgres store and the external
// service clients. Reads hand out copies and MutateTimesheet copies back on
// commit, so a failed write leaves the fake untouched, matching transaction
// semantics.

type fakeStore struct {
	timesheets map[string]*repository.Timesheet
	approvals  map[string][]*repository.ProjectApproval
	history    []*repository.ApprovalHistory
	failWrites bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		timesheets: make(map[string]*repository.Timesheet),
		approvals:  make(map[string][]*repository.ProjectApproval),
	}
}

func (f *fakeStore) GetTimesheet(_ context.Context, id string) (*repository.Timesheet, error) {
	ts, ok := f.timesheets[id]
	if !ok {
		return nil, errors.NotFound("timesheet", id)
	}
	c := *ts
	return &c, nil
}

func (f *fakeStore) ListTimesheetsForProjectWeek(_ context.Context, projectID string, weekStart, weekEnd time.Time) ([]*repository.Timesheet, error) {
	var out []*repository.Timesheet
	for id, ts := range f.timesheets {
		if ts.WeekStart.Before(weekStart) || ts.WeekEnd.After(weekEnd) {
			continue
		}
		for _, pa := range f.approvals[id] {
			if pa.ProjectID == projectID {
				c := *ts
				out = append(out, &c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListProjectApprovals(_ context.Context, timesheetID string) ([]*repository.ProjectApproval, error) {
	var out []*repository.ProjectApproval
	for _, pa := range f.approvals[timesheetID] {
		c := *pa
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeStore) ListApprovalHistory(_ context.Context, timesheetID string) ([]*repository.ApprovalHistory, error) {
	var out []*repository.ApprovalHistory
	for _, h := range f.history {
		if h.TimesheetID == timesheetID {
			c := *h
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeStore) MutateTimesheet(ctx context.Context, timesheetID string, fn func(ts *repository.Timesheet, approvals []*repository.ProjectApproval) (*repository.ChangeSet, error)) error {
	ts, err := f.GetTimesheet(ctx, timesheetID)
	if err != nil {
		return err
	}
	approvals, err := f.ListProjectApprovals(ctx, timesheetID)
	if err != nil {
		return err
	}
	cs, err := fn(ts, approvals)
	if err != nil || cs == nil {
		return err
	}
	return f.applyChangeSet(cs)
}

func (f *fakeStore) applyChangeSet(cs *repository.ChangeSet) error {
	if f.failWrites {
		return errors.Storage(nil, "write refused")
	}
	if cs.Timesheet != nil {
		c := *cs.Timesheet
		f.timesheets[c.ID] = &c
	}
	for _, pa := range cs.Approvals {
		f.putApproval(pa)
	}
	for _, h := range cs.History {
		c := *h
		f.history = append(f.history, &c)
	}
	return nil
}

func (f *fakeStore) ApplySubmission(_ context.Context, ts *repository.Timesheet, create, update []*repository.ProjectApproval) error {
	if f.failWrites {
		return errors.Storage(nil, "write refused")
	}
	c := *ts
	f.timesheets[c.ID] = &c
	for _, pa := range create {
		f.putApproval(pa)
	}
	for _, pa := range update {
		f.putApproval(pa)
	}
	return nil
}

func (f *fakeStore) putApproval(pa *repository.ProjectApproval) {
	c := *pa
	for i, existing := range f.approvals[c.TimesheetID] {
		if existing.ProjectID == c.ProjectID {
			f.approvals[c.TimesheetID][i] = &c
			return
		}
	}
	f.approvals[c.TimesheetID] = append(f.approvals[c.TimesheetID], &c)
}

// approval returns the stored ledger entry, failing loudly if absent.
func (f *fakeStore) approval(timesheetID, projectID string) *repository.ProjectApproval {
	for _, pa := range f.approvals[timesheetID] {
		if pa.ProjectID == projectID {
			return pa
		}
	}
	return nil
}

type fakeProjects struct {
	projects map[string]*client.Project
}

func (f *fakeProjects) GetProject(_ context.Context, id string) (*client.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, errors.NotFound("project", id)
	}
	return p, nil
}

type fakeIdentity struct {
	users map[string]*client.User
}

func (f *fakeIdentity) GetUser(_ context.Context, id string) (*client.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errors.NotFound("user", id)
	}
	return u, nil
}

type fakeEntries struct {
	hours map[string]map[string]client.ProjectHours
}

func (f *fakeEntries) GetProjectHours(_ context.Context, timesheetID string) (map[string]client.ProjectHours, error) {
	h, ok := f.hours[timesheetID]
	if !ok {
		return map[string]client.ProjectHours{}, nil
	}
	return h, nil
}

type publishedEvent struct {
	EventType   string
	TimesheetID string
	ActorID     string
}

type fakeEvents struct {
	published []publishedEvent
}

func (f *fakeEvents) PublishTimesheetEvent(_ context.Context, eventType, timesheetID, actorID string, _ map[string]interface{}) {
	f.published = append(f.published, publishedEvent{eventType, timesheetID, actorID})
}

// testEnv bundles the fakes with fully wired services.
type testEnv struct {
	store      *fakeStore
	projects   *fakeProjects
	identity   *fakeIdentity
	entries    *fakeEntries
	events     *fakeEvents
	approvals  *ApprovalService
	bulk       *BulkService
	finalizers *FinalizerService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:    newFakeStore(),
		projects: &fakeProjects{projects: make(map[string]*client.Project)},
		identity: &fakeIdentity{users: make(map[string]*client.User)},
		entries:  &fakeEntries{hours: make(map[string]map[string]client.ProjectHours)},
		events:   &fakeEvents{},
	}
	log := logger.Nop()
	env.approvals = NewApprovalService(env.store, env.projects, env.identity, env.entries, env.events, log)
	env.bulk = NewBulkService(env.store, env.projects, env.identity, env.approvals, log)
	env.finalizers = NewFinalizerService(env.store, env.events, log)
	return env
}

func (e *testEnv) addUser(id, name string, role repository.Role) {
	e.identity.users[id] = &client.User{ID: id, Name: name, Role: string(role)}
}

func (e *testEnv) addProject(id, name, managerID string, leadID *string, autoEscalates bool) {
	e.projects.projects[id] = &client.Project{
		ID:                        id,
		Name:                      name,
		PrimaryManagerID:          managerID,
		LeadID:                    leadID,
		LeadApprovalAutoEscalates: autoEscalates,
	}
}

func (e *testEnv) addTimesheet(id, userID string, status repository.TimesheetStatus, weekStart time.Time) *repository.Timesheet {
	ts := &repository.Timesheet{
		ID:        id,
		UserID:    userID,
		WeekStart: weekStart,
		WeekEnd:   weekStart.AddDate(0, 0, 6),
		Status:    status,
	}
	e.store.timesheets[id] = ts
	return ts
}

func (e *testEnv) addApproval(timesheetID, projectID string, lead, manager, management repository.TierStatus) *repository.ProjectApproval {
	pa := &repository.ProjectApproval{
		ID:               timesheetID + "/" + projectID,
		TimesheetID:      timesheetID,
		ProjectID:        projectID,
		LeadStatus:       lead,
		ManagerStatus:    manager,
		ManagementStatus: management,
		EntryCount:       3,
		TotalHours:       24,
	}
	e.store.approvals[timesheetID] = append(e.store.approvals[timesheetID], pa)
	return pa
}

func strPtr(s string) *string { return &s }
