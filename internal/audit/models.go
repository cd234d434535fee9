package audit

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventCertificateCreated  EventType = "certificate.created"
	EventCertificateUpdated  EventType = "certificate.updated"
	EventCertificateApproved EventType = "certificate.approved"
	EventCertificateDeleted  EventType = "certificate.deleted"
)

// Event is one lifecycle fact about a certificate, keyed by certificate so a
// partitioned log preserves per-certificate ordering.
type Event struct {
	Type          EventType `json:"type"`
	CertificateID uuid.UUID `json:"certificate_id"`
	CertificateNo string    `json:"certificate_no"`
	ActorID       uuid.UUID `json:"actor_id"`
	Timestamp     time.Time `json:"timestamp"`
}
