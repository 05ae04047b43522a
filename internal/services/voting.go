package services

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/abrezinsky/planningpoker/internal/consensus"
	"github.com/abrezinsky/planningpoker/internal/errors"
	"github.com/abrezinsky/planningpoker/internal/models"
)

func requireOwner(sess *models.Session, userID, action string) error {
	if sess.OwnerID != userID {
		return errors.Unauthorized("only the session owner can " + action)
	}
	return nil
}

// StartVoting replaces any current round with a fresh one
func (s *SessionService) StartVoting(ctx context.Context, code, userID string) (*models.VotingRound, error) {
	var started *models.VotingRound
	err := s.update(ctx, "start_voting", code, func(sess *models.Session, m *mutation) error {
		if err := requireOwner(sess, userID, "start voting"); err != nil {
			return err
		}

		round := &models.VotingRound{
			ID:          uuid.NewString(),
			SessionCode: sess.Code,
			StartedAt:   s.now(),
			Status:      models.RoundInProgress,
			Votes:       map[string]*models.Vote{},
		}
		sess.CurrentRound = round
		started = round.Clone()

		m.emit(models.EventVotingStarted, models.VotingStartedPayload{
			ID:        round.ID,
			StartedAt: round.StartedAt,
			Status:    round.Status,
		}, "")
		s.log.Info("Voting started", "session", sess.Code, "round", round.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return started, nil
}

// SubmitVote records or replaces the user's vote in the current round
func (s *SessionService) SubmitVote(ctx context.Context, code, userID string, value int) (*models.Vote, error) {
	var submitted *models.Vote
	err := s.update(ctx, "submit_vote", code, func(sess *models.Session, m *mutation) error {
		round := sess.CurrentRound
		if round == nil {
			return errors.Validation("no active voting round")
		}
		if round.Status != models.RoundInProgress {
			return errors.Validation("voting round is not active")
		}
		if !consensus.IsValidValue(value) {
			return errors.Validationf("invalid vote value %d, must be one of: %v", value, consensus.Values())
		}
		user, ok := sess.Users[userID]
		if !ok {
			return errors.Validation("user not found in session")
		}

		now := s.now()
		vote := &models.Vote{
			UserID:      user.ID,
			UserName:    user.Name,
			Value:       value,
			SubmittedAt: now,
			UpdatedAt:   now,
		}
		if prev, ok := round.Votes[user.ID]; ok {
			vote.SubmittedAt = prev.SubmittedAt
		}
		round.Votes[user.ID] = vote
		user.LastSeenAt = now
		v := *vote
		submitted = &v

		m.emit(models.EventVoteSubmitted, models.VoteSubmittedPayload{
			UserID:   user.ID,
			UserName: user.Name,
			HasVoted: true,
		}, user.ID)
		s.log.Info("Vote submitted", "session", sess.Code, "user", user.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return submitted, nil
}

// RevealVotes freezes the current round's results and unmasks every vote
func (s *SessionService) RevealVotes(ctx context.Context, code, userID string) (*models.VotingResults, error) {
	var results *models.VotingResults
	err := s.update(ctx, "reveal_votes", code, func(sess *models.Session, m *mutation) error {
		if err := requireOwner(sess, userID, "reveal votes"); err != nil {
			return err
		}
		round := sess.CurrentRound
		if round == nil {
			return errors.Validation("no active voting round")
		}
		if round.IsRevealed() {
			return errors.Validation("votes already revealed")
		}
		if round.VoteCount() == 0 {
			return errors.Validation("no votes to reveal")
		}

		now := s.now()
		round.Results = consensus.Calculate(round.VoteValues())
		round.Status = models.RoundRevealed
		round.RevealedAt = &now
		results = round.Results.Clone()

		m.emit(models.EventVotesRevealed, models.VotesRevealedPayload{
			Results: round.Results.Clone(),
			Votes:   revealedVotes(round),
		}, "")
		s.log.Info("Votes revealed", "session", sess.Code, "votes", round.VoteCount(), "majority", round.Results.Majority)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// revealedVotes lists a round's votes ordered by submission time
func revealedVotes(round *models.VotingRound) []models.RevealedVote {
	votes := make([]models.RevealedVote, 0, len(round.Votes))
	for _, v := range round.Votes {
		votes = append(votes, models.RevealedVote{
			UserID:      v.UserID,
			UserName:    v.UserName,
			Value:       v.Value,
			SubmittedAt: v.SubmittedAt,
		})
	}
	sort.Slice(votes, func(i, j int) bool {
		if votes[i].SubmittedAt.Equal(votes[j].SubmittedAt) {
			return votes[i].UserName < votes[j].UserName
		}
		return votes[i].SubmittedAt.Before(votes[j].SubmittedAt)
	})
	return votes
}

// ResetVotes clears the current round, archiving it if it was revealed
func (s *SessionService) ResetVotes(ctx context.Context, code, userID string) error {
	return s.update(ctx, "reset_votes", code, func(sess *models.Session, m *mutation) error {
		if err := requireOwner(sess, userID, "reset votes"); err != nil {
			return err
		}
		if round := sess.CurrentRound; round != nil && round.IsRevealed() {
			sess.RoundHistory = append(sess.RoundHistory, round)
		}
		sess.CurrentRound = nil

		m.emit(models.EventVotesReset, models.VotesResetPayload{ResetAt: s.now()}, "")
		s.log.Info("Votes reset", "session", sess.Code, "history", len(sess.RoundHistory))
		return nil
	})
}
