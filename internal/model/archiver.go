package model

// TrafficArchiver mirrors persisted observations into an analytics store.
// Archive must not block the caller; implementations buffer and batch writes,
// and may drop observations under backpressure. The archive is best-effort
// and never part of the engine's transactional unit.
type TrafficArchiver interface {
	Archive(obs *TrafficObservation)
}
