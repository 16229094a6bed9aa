package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	GamesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swapit_games_created_total",
			Help: "Sessions created",
		},
	)
	GamesStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swapit_games_started_total",
			Help: "Sessions moved from CREATED to LIVE",
		},
	)
	GamesEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapit_games_ended_total",
			Help: "Sessions that left the CREATED or LIVE phase, by outcome",
		},
		[]string{"reason"},
	)
	Moves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapit_moves_total",
			Help: "Submitted moves by outcome",
		},
		[]string{"outcome"},
	)
	Finalizations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swapit_finalizations_total",
			Help: "OVER writes, including racing duplicates",
		},
	)
)

func init() {
	prometheus.MustRegister(GamesCreated)
	prometheus.MustRegister(GamesStarted)
	prometheus.MustRegister(GamesEnded)
	prometheus.MustRegister(Moves)
	prometheus.MustRegister(Finalizations)
}
