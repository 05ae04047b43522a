package services_test

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/abrezinsky/planningpoker/internal/errors"
	"github.com/abrezinsky/planningpoker/internal/models"
	"github.com/abrezinsky/planningpoker/internal/services"
	"github.com/abrezinsky/planningpoker/internal/testutil"
)

// setupRound creates a session owned by Alice with Bob joined and a round started
func setupRound(t *testing.T) (*services.SessionService, *testutil.Clock, *testutil.Notifier, *models.Session, *models.User) {
	t.Helper()
	svc, clock, notifier := testutil.NewTestSessionService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "Alice", "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	bob, err := svc.JoinSession(ctx, sess.Code, "Bob", "")
	if err != nil {
		t.Fatalf("JoinSession failed: %v", err)
	}
	if _, err := svc.StartVoting(ctx, sess.Code, sess.OwnerID); err != nil {
		t.Fatalf("StartVoting failed: %v", err)
	}
	notifier.Reset()
	return svc, clock, notifier, sess, bob
}

func TestStartVoting_OwnerOnly(t *testing.T) {
	svc, _, notifier := testutil.NewTestSessionService(t)
	ctx := context.Background()
	sess, _ := svc.CreateSession(ctx, "Alice", "")
	bob, _ := svc.JoinSession(ctx, sess.Code, "Bob", "")
	notifier.Reset()

	_, err := svc.StartVoting(ctx, sess.Code, bob.ID)
	if !apperrors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if len(notifier.Events()) != 0 {
		t.Error("expected no events after a rejected start")
	}

	round, err := svc.StartVoting(ctx, sess.Code, sess.OwnerID)
	if err != nil {
		t.Fatalf("StartVoting failed: %v", err)
	}
	if round.Status != models.RoundInProgress || len(round.Votes) != 0 {
		t.Errorf("unexpected round: %+v", round)
	}
	if types := notifier.Types(); len(types) != 1 || types[0] != models.EventVotingStarted {
		t.Errorf("expected voting_started, got %v", types)
	}
}

func TestStartVoting_DiscardsInProgressRound(t *testing.T) {
	svc, _, _, sess, bob := setupRound(t)
	ctx := context.Background()

	svc.SubmitVote(ctx, sess.Code, bob.ID, 5)
	second, err := svc.StartVoting(ctx, sess.Code, sess.OwnerID)
	if err != nil {
		t.Fatalf("StartVoting failed: %v", err)
	}

	got, _ := svc.GetSession(ctx, sess.Code)
	if got.CurrentRound.ID != second.ID || got.CurrentRound.VoteCount() != 0 {
		t.Error("expected a fresh round without votes")
	}
	history, _ := svc.RoundHistory(ctx, sess.Code)
	if len(history) != 0 {
		t.Errorf("unrevealed rounds must not be archived, got %d", len(history))
	}
}

func TestSubmitVote_RecordsAndNotifiesOthers(t *testing.T) {
	svc, _, notifier, sess, bob := setupRound(t)
	ctx := context.Background()

	vote, err := svc.SubmitVote(ctx, sess.Code, bob.ID, 8)
	if err != nil {
		t.Fatalf("SubmitVote failed: %v", err)
	}
	if vote.Value != 8 || vote.UserName != "Bob" {
		t.Errorf("unexpected vote: %+v", vote)
	}

	events := notifier.Events()
	if len(events) != 1 || events[0].Event.Type != models.EventVoteSubmitted {
		t.Fatalf("expected vote_submitted, got %v", notifier.Types())
	}
	if events[0].Exclude != bob.ID {
		t.Errorf("expected voter to be excluded, got %q", events[0].Exclude)
	}
	payload := events[0].Event.Data.(models.VoteSubmittedPayload)
	if !payload.HasVoted || payload.UserID != bob.ID {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestSubmitVote_RevotePreservesSubmittedAt(t *testing.T) {
	svc, clock, _, sess, bob := setupRound(t)
	ctx := context.Background()

	first, _ := svc.SubmitVote(ctx, sess.Code, bob.ID, 3)
	clock.Advance(10 * time.Second)
	second, err := svc.SubmitVote(ctx, sess.Code, bob.ID, 13)
	if err != nil {
		t.Fatalf("re-vote failed: %v", err)
	}

	if !second.SubmittedAt.Equal(first.SubmittedAt) {
		t.Errorf("expected submittedAt %v preserved, got %v", first.SubmittedAt, second.SubmittedAt)
	}
	if !second.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("expected updatedAt %v, got %v", clock.Now(), second.UpdatedAt)
	}

	got, _ := svc.GetSession(ctx, sess.Code)
	if got.CurrentRound.VoteCount() != 1 || got.CurrentRound.Votes[bob.ID].Value != 13 {
		t.Error("expected a single updated vote")
	}
}

func TestSubmitVote_Errors(t *testing.T) {
	svc, _, _ := testutil.NewTestSessionService(t)
	ctx := context.Background()
	sess, _ := svc.CreateSession(ctx, "Alice", "")

	if _, err := svc.SubmitVote(ctx, sess.Code, sess.OwnerID, 5); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error without a round, got %v", err)
	}

	svc.StartVoting(ctx, sess.Code, sess.OwnerID)

	tests := []struct {
		name   string
		code   string
		userID string
		value  int
		kind   apperrors.Kind
	}{
		{"value not in sequence", sess.Code, sess.OwnerID, 4, apperrors.ErrValidation},
		{"zero", sess.Code, sess.OwnerID, 0, apperrors.ErrValidation},
		{"above range", sess.Code, sess.OwnerID, 34, apperrors.ErrValidation},
		{"unknown user", sess.Code, "ghost", 5, apperrors.ErrValidation},
		{"unknown session", "ZZZZZZZZ", sess.OwnerID, 5, apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitVote(ctx, tt.code, tt.userID, tt.value)
			if apperrors.KindOf(err) != tt.kind {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestSubmitVote_AcceptsEverySequenceValue(t *testing.T) {
	svc, _, _, sess, bob := setupRound(t)
	ctx := context.Background()

	for _, v := range []int{1, 2, 3, 5, 8, 13, 21} {
		if _, err := svc.SubmitVote(ctx, sess.Code, bob.ID, v); err != nil {
			t.Errorf("SubmitVote(%d) failed: %v", v, err)
		}
	}
}

func TestSubmitVote_AfterRevealRejected(t *testing.T) {
	svc, _, _, sess, bob := setupRound(t)
	ctx := context.Background()

	svc.SubmitVote(ctx, sess.Code, bob.ID, 5)
	if _, err := svc.RevealVotes(ctx, sess.Code, sess.OwnerID); err != nil {
		t.Fatalf("RevealVotes failed: %v", err)
	}

	_, err := svc.SubmitVote(ctx, sess.Code, bob.ID, 8)
	if !apperrors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err.Error() != "voting round is not active" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestRevealVotes_ComputesResults(t *testing.T) {
	svc, _, notifier, sess, bob := setupRound(t)
	ctx := context.Background()

	svc.SubmitVote(ctx, sess.Code, sess.OwnerID, 5)
	svc.SubmitVote(ctx, sess.Code, bob.ID, 8)
	notifier.Reset()

	results, err := svc.RevealVotes(ctx, sess.Code, sess.OwnerID)
	if err != nil {
		t.Fatalf("RevealVotes failed: %v", err)
	}

	if results.TotalVotes != 2 || results.MinVote != 5 || results.MaxVote != 8 {
		t.Errorf("unexpected totals: %+v", results)
	}
	if results.ActualAverage != 6.5 {
		t.Errorf("expected average 6.5, got %v", results.ActualAverage)
	}
	if results.Distribution[5] != 1 || results.Distribution[8] != 1 || len(results.Distribution) != 2 {
		t.Errorf("unexpected distribution: %v", results.Distribution)
	}
	if results.Optimistic > results.Majority || results.Majority > results.Pessimistic {
		t.Errorf("expected optimistic <= majority <= pessimistic, got %+v", results)
	}

	events := notifier.Events()
	if len(events) != 1 || events[0].Event.Type != models.EventVotesRevealed {
		t.Fatalf("expected votes_revealed, got %v", notifier.Types())
	}
	payload := events[0].Event.Data.(models.VotesRevealedPayload)
	if len(payload.Votes) != 2 || payload.Results.TotalVotes != 2 {
		t.Errorf("unexpected payload: %+v", payload)
	}

	got, _ := svc.GetSession(ctx, sess.Code)
	if !got.CurrentRound.IsRevealed() || got.CurrentRound.RevealedAt == nil || got.CurrentRound.Results == nil {
		t.Error("expected current round to be frozen as revealed")
	}
}

func TestRevealVotes_Errors(t *testing.T) {
	svc, _, _ := testutil.NewTestSessionService(t)
	ctx := context.Background()
	sess, _ := svc.CreateSession(ctx, "Alice", "")
	bob, _ := svc.JoinSession(ctx, sess.Code, "Bob", "")

	if _, err := svc.RevealVotes(ctx, sess.Code, sess.OwnerID); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation without round, got %v", err)
	}

	svc.StartVoting(ctx, sess.Code, sess.OwnerID)
	if _, err := svc.RevealVotes(ctx, sess.Code, sess.OwnerID); err == nil || err.Error() != "no votes to reveal" {
		t.Errorf("expected 'no votes to reveal', got %v", err)
	}

	svc.SubmitVote(ctx, sess.Code, bob.ID, 3)
	if _, err := svc.RevealVotes(ctx, sess.Code, bob.ID); !apperrors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("expected unauthorized for non-owner, got %v", err)
	}

	if _, err := svc.RevealVotes(ctx, sess.Code, sess.OwnerID); err != nil {
		t.Fatalf("RevealVotes failed: %v", err)
	}
	if _, err := svc.RevealVotes(ctx, sess.Code, sess.OwnerID); err == nil || err.Error() != "votes already revealed" {
		t.Errorf("expected 'votes already revealed', got %v", err)
	}
}

func TestResetVotes_ArchivesRevealedRound(t *testing.T) {
	svc, _, notifier, sess, bob := setupRound(t)
	ctx := context.Background()

	svc.SubmitVote(ctx, sess.Code, bob.ID, 13)
	svc.RevealVotes(ctx, sess.Code, sess.OwnerID)
	notifier.Reset()

	if err := svc.ResetVotes(ctx, sess.Code, sess.OwnerID); err != nil {
		t.Fatalf("ResetVotes failed: %v", err)
	}
	if types := notifier.Types(); len(types) != 1 || types[0] != models.EventVotesReset {
		t.Errorf("expected votes_reset, got %v", types)
	}

	got, _ := svc.GetSession(ctx, sess.Code)
	if got.CurrentRound != nil {
		t.Error("expected current round cleared")
	}
	history, err := svc.RoundHistory(ctx, sess.Code)
	if err != nil {
		t.Fatalf("RoundHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Results.Majority != 13 {
		t.Errorf("expected one archived round with majority 13, got %+v", history)
	}
}

func TestResetVotes_DiscardsUnrevealedRound(t *testing.T) {
	svc, _, _, sess, bob := setupRound(t)
	ctx := context.Background()

	svc.SubmitVote(ctx, sess.Code, bob.ID, 2)
	if err := svc.ResetVotes(ctx, sess.Code, sess.OwnerID); err != nil {
		t.Fatalf("ResetVotes failed: %v", err)
	}

	history, _ := svc.RoundHistory(ctx, sess.Code)
	if len(history) != 0 {
		t.Errorf("expected no archived rounds, got %d", len(history))
	}

	// reset with no round at all is allowed
	if err := svc.ResetVotes(ctx, sess.Code, sess.OwnerID); err != nil {
		t.Errorf("ResetVotes without round failed: %v", err)
	}
}

func TestResetVotes_OwnerOnly(t *testing.T) {
	svc, _, _, sess, bob := setupRound(t)

	err := svc.ResetVotes(context.Background(), sess.Code, bob.ID)
	if !apperrors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLeaveSession_KeepsVotesOfDepartedUser(t *testing.T) {
	svc, _, _, sess, bob := setupRound(t)
	ctx := context.Background()

	svc.SubmitVote(ctx, sess.Code, bob.ID, 21)
	svc.LeaveSession(ctx, sess.Code, bob.ID)

	results, err := svc.RevealVotes(ctx, sess.Code, sess.OwnerID)
	if err != nil {
		t.Fatalf("RevealVotes failed: %v", err)
	}
	if results.TotalVotes != 1 || results.MaxVote != 21 {
		t.Errorf("expected departed user's vote to count, got %+v", results)
	}
}

func TestRoundLifecycle_EventOrder(t *testing.T) {
	svc, _, notifier := testutil.NewTestSessionService(t)
	ctx := context.Background()

	sess, _ := svc.CreateSession(ctx, "Alice", "")
	bob, _ := svc.JoinSession(ctx, sess.Code, "Bob", "")
	svc.StartVoting(ctx, sess.Code, sess.OwnerID)
	svc.SubmitVote(ctx, sess.Code, bob.ID, 5)
	svc.SubmitVote(ctx, sess.Code, sess.OwnerID, 8)
	svc.RevealVotes(ctx, sess.Code, sess.OwnerID)
	svc.ResetVotes(ctx, sess.Code, sess.OwnerID)
	svc.LeaveSession(ctx, sess.Code, bob.ID)
	svc.DeleteSession(ctx, sess.Code)

	expected := []models.EventType{
		models.EventUserJoined,
		models.EventVotingStarted,
		models.EventVoteSubmitted,
		models.EventVoteSubmitted,
		models.EventVotesRevealed,
		models.EventVotesReset,
		models.EventUserLeft,
		models.EventSessionClosed,
	}
	types := notifier.Types()
	if len(types) != len(expected) {
		t.Fatalf("expected %d events, got %v", len(expected), types)
	}
	for i := range expected {
		if types[i] != expected[i] {
			t.Errorf("event %d: expected %s, got %s", i, expected[i], types[i])
		}
	}
	for _, e := range notifier.Events() {
		if e.Code != sess.Code {
			t.Errorf("event %s addressed to %q", e.Event.Type, e.Code)
		}
	}
}
