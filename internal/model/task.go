package model

// DeliveryTask is one unit of fan-out work. Immutable once constructed;
// created by the producer, consumed exactly once by the delivery worker
// (or by the shutdown drain path).
type DeliveryTask struct {
	Recipients []string
	Title      string
	Body       string
	LinkPath   string
	Live       LiveEvent
}
