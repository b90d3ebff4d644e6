package archive

import (
	"time"

	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
	"gorm.io/gorm"
)

// GameRecord is one finished game.
type GameRecord struct {
	gorm.Model
	SessionID    string     `gorm:"size:64;uniqueIndex;not null"`
	RoomCode     string     `gorm:"size:16;index;not null"`
	TotalRounds  int        `gorm:"not null"`
	PlayedRounds int        `gorm:"not null"`
	WinnerUserID string     `gorm:"size:64"`
	IsDraw       bool       `gorm:"not null;default:false"`
	StartedAt    time.Time  `gorm:"not null"`
	FinishedAt   time.Time  `gorm:"index;not null"`
	Rounds       []RoundRow `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
	Scores       []ScoreRow `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
}

// RoundRow is one round of an archived game.
type RoundRow struct {
	ID           uint   `gorm:"primaryKey"`
	GameID       uint   `gorm:"index;not null"`
	RoundNumber  int    `gorm:"not null"`
	DrawerUserID string `gorm:"size:64;not null"`
	Word         string `gorm:"size:128"`
	Topic        string `gorm:"size:128"`
	CompletedAt  *time.Time
}

// ScoreRow is a participant's final score.
type ScoreRow struct {
	ID          uint   `gorm:"primaryKey"`
	GameID      uint   `gorm:"index;not null"`
	UserID      string `gorm:"size:64;not null"`
	DisplayName string `gorm:"size:64;not null"`
	Score       int    `gorm:"not null"`
	IsWinner    bool   `gorm:"not null;default:false"`
}

// FromSession maps a finished session to its archive rows.
func FromSession(s domain.Session) GameRecord {
	rec := GameRecord{
		SessionID:   s.ID,
		RoomCode:    s.RoomCode,
		TotalRounds: s.TotalRounds,
		StartedAt:   s.CreatedAt,
		FinishedAt:  s.UpdatedAt,
	}
	if s.FinishedAt != nil {
		rec.FinishedAt = *s.FinishedAt
	}

	winners := map[string]bool{}
	scores := s.Participants
	if s.Result != nil {
		rec.WinnerUserID = s.Result.WinnerUserID
		rec.IsDraw = s.Result.IsDraw
		for _, id := range s.Result.WinnerUserIDs {
			winners[id] = true
		}
		scores = s.Result.FinalScores
	}

	for _, r := range s.Rounds {
		if r.Word == "" {
			continue
		}
		rec.Rounds = append(rec.Rounds, RoundRow{
			RoundNumber:  r.RoundNumber,
			DrawerUserID: r.DrawerUserID,
			Word:         r.Word,
			Topic:        r.Topic,
			CompletedAt:  r.CompletedAt,
		})
	}
	rec.PlayedRounds = len(rec.Rounds)

	for _, p := range scores {
		rec.Scores = append(rec.Scores, ScoreRow{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			IsWinner:    winners[p.UserID],
		})
	}
	return rec
}
