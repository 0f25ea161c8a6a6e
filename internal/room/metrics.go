package room

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minato_rooms_created_total",
		Help: "Game rooms created, by mode.",
	}, []string{"mode"})

	answersSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minato_answers_submitted_total",
		Help: "Answers accepted for an active question.",
	})

	roomsFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minato_rooms_finished_total",
		Help: "Rooms that reached the finished state.",
	})

	advanceConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minato_room_advance_conflicts_total",
		Help: "Optimistic-concurrency conflicts on room state transitions.",
	})
)
