package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletgate_auth_attempts_total",
		Help: "Authentication attempts by outcome.",
	}, []string{"outcome"})

	deviceConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walletgate_device_conflicts_total",
		Help: "Authentications rejected because the device is bound to another wallet.",
	})

	sessionPersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walletgate_session_persist_failures_total",
		Help: "Session writes that failed without failing the login.",
	})

	rewardMintFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walletgate_reward_mint_failures_total",
		Help: "Welcome mints that exhausted their retry budget.",
	})
)

const (
	outcomeSuccess    = "success"
	outcomeCredential = "credential_rejected"
	outcomeConflict   = "device_conflict"
	outcomeError      = "error"
)
