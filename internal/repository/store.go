package repository

import (
	"database/sql"

	"github.com/rs/zerolog"
)

// Store groups every repository over one database handle.
type Store struct {
	*PlayerRepository
	*ScoreRepository
	*AllianceRepository
	*CombatReportRepository
	*FleetRecordRepository
	*PredictionRepository
}

func NewStore(sqlDB *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		PlayerRepository:       NewPlayerRepository(sqlDB, logger),
		ScoreRepository:        NewScoreRepository(sqlDB, logger),
		AllianceRepository:     NewAllianceRepository(sqlDB, logger),
		CombatReportRepository: NewCombatReportRepository(sqlDB, logger),
		FleetRecordRepository:  NewFleetRecordRepository(sqlDB, logger),
		PredictionRepository:   NewPredictionRepository(sqlDB, logger),
	}
}
