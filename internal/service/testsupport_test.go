package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classhall/assess-backend/internal/model"
	"github.com/classhall/assess-backend/internal/notifier"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

type stubAssessmentStore struct {
	mu          sync.Mutex
	assessments map[uuid.UUID]*model.Assessment
	questions   map[uuid.UUID][]model.Question
}

func newStubAssessmentStore() *stubAssessmentStore {
	return &stubAssessmentStore{
		assessments: make(map[uuid.UUID]*model.Assessment),
		questions:   make(map[uuid.UUID][]model.Question),
	}
}

func (s *stubAssessmentStore) put(a *model.Assessment, questions ...model.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.assessments[a.ID] = a
	s.questions[a.ID] = questions
}

func (s *stubAssessmentStore) GetByID(_ context.Context, id uuid.UUID) (*model.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (s *stubAssessmentStore) ListQuestions(_ context.Context, assessmentID uuid.UUID) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Question(nil), s.questions[assessmentID]...), nil
}

func (s *stubAssessmentStore) Create(_ context.Context, a *model.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	s.assessments[a.ID] = &cp
	return nil
}

func (s *stubAssessmentStore) Update(_ context.Context, a *model.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assessments[a.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *a
	s.assessments[a.ID] = &cp
	return nil
}

func (s *stubAssessmentStore) UpdateStatus(_ context.Context, id uuid.UUID, status model.AssessmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.Status = status
	return nil
}

func (s *stubAssessmentStore) UpdateStatusIf(_ context.Context, id uuid.UUID, from, to model.AssessmentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	return true, nil
}

func (s *stubAssessmentStore) SetResultsPublished(_ context.Context, id uuid.UUID, published bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.ResultsPublished = published
	return nil
}

func (s *stubAssessmentStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assessments, id)
	delete(s.questions, id)
	return nil
}

func (s *stubAssessmentStore) ListByAuthorPaginated(_ context.Context, authorID, limit, offset int) ([]model.Assessment, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Assessment
	for _, a := range s.assessments {
		if authorID == 0 || a.AuthorID == authorID {
			out = append(out, *a)
		}
	}
	return out, len(out), nil
}

func (s *stubAssessmentStore) ListByStatuses(_ context.Context, statuses ...model.AssessmentStatus) ([]model.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Assessment
	for _, a := range s.assessments {
		for _, st := range statuses {
			if a.Status == st {
				out = append(out, *a)
				break
			}
		}
	}
	return out, nil
}

func (s *stubAssessmentStore) ReplaceQuestions(_ context.Context, assessmentID uuid.UUID, questions []model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[assessmentID]
	if !ok {
		return pgx.ErrNoRows
	}
	total := 0
	for i := range questions {
		if questions[i].ID == uuid.Nil {
			questions[i].ID = uuid.New()
		}
		questions[i].AssessmentID = assessmentID
		total += questions[i].Points
	}
	s.questions[assessmentID] = questions
	a.TotalPoints = total
	return nil
}

type stubSubmissionStore struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*model.Submission
	byPair map[string]uuid.UUID

	sealErr error
}

func newStubSubmissionStore() *stubSubmissionStore {
	return &stubSubmissionStore{
		byID:   make(map[uuid.UUID]*model.Submission),
		byPair: make(map[string]uuid.UUID),
	}
}

func pairKey(assessmentID uuid.UUID, participantID int) string {
	return assessmentID.String() + "/" + strconv.Itoa(participantID)
}

func (s *stubSubmissionStore) put(sub *model.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	s.byID[sub.ID] = sub
	s.byPair[pairKey(sub.AssessmentID, sub.ParticipantID)] = sub.ID
}

func (s *stubSubmissionStore) Create(_ context.Context, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(sub.AssessmentID, sub.ParticipantID)
	if _, exists := s.byPair[key]; exists {
		return pgx.ErrNoRows
	}
	sub.ID = uuid.New()
	cp := *sub
	s.byID[sub.ID] = &cp
	s.byPair[key] = sub.ID
	return nil
}

func (s *stubSubmissionStore) GetByID(_ context.Context, id uuid.UUID) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *sub
	return &cp, nil
}

func (s *stubSubmissionStore) GetByAssessmentAndParticipant(_ context.Context, assessmentID uuid.UUID, participantID int) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPair[pairKey(assessmentID, participantID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *stubSubmissionStore) Seal(_ context.Context, id uuid.UUID, reason model.SealReason, answers map[uuid.UUID]string, snapshot []model.Question, submittedAt time.Time) (*model.Submission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealErr != nil {
		return nil, false, s.sealErr
	}
	sub, ok := s.byID[id]
	if !ok {
		return nil, false, pgx.ErrNoRows
	}
	if sub.Status != model.SubmissionStatusInProgress {
		cp := *sub
		return &cp, false, nil
	}
	sub.Status = model.SubmissionStatusSubmitted
	sub.SealReason = &reason
	sub.Answers = answers
	sub.QuestionSnapshot = snapshot
	sub.SubmittedAt = &submittedAt
	cp := *sub
	return &cp, true, nil
}

func (s *stubSubmissionStore) ApplyGrading(_ context.Context, id uuid.UUID, status model.SubmissionStatus, autoScore, totalScore float64, percentage int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	sub.Status = status
	sub.AutoScore = &autoScore
	sub.TotalScore = &totalScore
	sub.Percentage = &percentage
	return nil
}

func (s *stubSubmissionStore) SetManualScores(_ context.Context, id uuid.UUID, scores map[uuid.UUID]int, feedback map[uuid.UUID]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if sub.ManualScores == nil {
		sub.ManualScores = make(map[uuid.UUID]int)
	}
	for qid, pts := range scores {
		sub.ManualScores[qid] = pts
	}
	if sub.Feedback == nil {
		sub.Feedback = make(map[uuid.UUID]string)
	}
	for qid, fb := range feedback {
		sub.Feedback[qid] = fb
	}
	return nil
}

func (s *stubSubmissionStore) HasAny(_ context.Context, assessmentID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.byID {
		if sub.AssessmentID == assessmentID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubSubmissionStore) CountNotFullyGraded(_ context.Context, assessmentID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, sub := range s.byID {
		if sub.AssessmentID == assessmentID && !sub.Status.Terminal() {
			count++
		}
	}
	return count, nil
}

func (s *stubSubmissionStore) ListByAssessment(_ context.Context, assessmentID uuid.UUID, limit, offset int) ([]model.Submission, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.Submission
	for _, sub := range s.byID {
		if sub.AssessmentID == assessmentID {
			all = append(all, *sub)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ParticipantID < all[j].ParticipantID })

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (s *stubSubmissionStore) ListInProgressByAssessment(_ context.Context, assessmentID uuid.UUID) ([]model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Submission
	for _, sub := range s.byID {
		if sub.AssessmentID == assessmentID && sub.Status == model.SubmissionStatusInProgress {
			out = append(out, *sub)
		}
	}
	return out, nil
}

type stubIntegrityStore struct {
	mu     sync.Mutex
	events map[uuid.UUID][]model.IntegrityEvent
}

func newStubIntegrityStore() *stubIntegrityStore {
	return &stubIntegrityStore{events: make(map[uuid.UUID][]model.IntegrityEvent)}
}

func (s *stubIntegrityStore) put(ev model.IntegrityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.SubmissionID] = append(s.events[ev.SubmissionID], ev)
}

func (s *stubIntegrityStore) ListBySubmission(_ context.Context, submissionID uuid.UUID) ([]model.IntegrityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.IntegrityEvent(nil), s.events[submissionID]...), nil
}

// recordingNotifier captures events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev notifier.Event) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) ofType(t notifier.EventType) []notifier.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifier.Event
	for _, ev := range n.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

var errStoreDown = errors.New("store down")

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
