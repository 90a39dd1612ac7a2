package metrics

import "github.com/jackc/pgx/v5/pgxpool"

// RecordDBPoolMetrics copies a pool snapshot into the pool gauges.
func RecordDBPoolMetrics(stat *pgxpool.Stat) {
	for state, n := range map[string]int32{
		"in_use":       stat.AcquiredConns(),
		"idle":         stat.IdleConns(),
		"constructing": stat.ConstructingConns(),
		"max":          stat.MaxConns(),
	} {
		DBPoolConnections.WithLabelValues(state).Set(float64(n))
	}
	DBPoolAcquires.Set(float64(stat.AcquireCount()))
}
