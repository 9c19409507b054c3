package model

import "fmt"

// RequestStatus is the lifecycle status of a supply request. The numeric
// values are persisted in the database and must stay stable.
type RequestStatus int

const (
	StatusCreated RequestStatus = iota
	StatusApproved
	StatusRejected
	StatusDetailsDocumentGenerated
	StatusPendingDelivery
	StatusDelivered
	StatusDeliveredWithClaims
	StatusClaimsDocumentGenerated
	StatusClaimsEliminated
	StatusMoneyReturned
)

func (s RequestStatus) String() string {
	switch s {
	case StatusCreated:
		return "Created"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	case StatusDetailsDocumentGenerated:
		return "DetailsDocumentGenerated"
	case StatusPendingDelivery:
		return "PendingDelivery"
	case StatusDelivered:
		return "Delivered"
	case StatusDeliveredWithClaims:
		return "DeliveredWithClaims"
	case StatusClaimsDocumentGenerated:
		return "ClaimsDocumentGenerated"
	case StatusClaimsEliminated:
		return "ClaimsEliminated"
	case StatusMoneyReturned:
		return "MoneyReturned"
	default:
		return fmt.Sprintf("RequestStatus(%d)", int(s))
	}
}

// SupplyDocument is the read-only projection rendered into a supply
// authorization slip. Built fresh each polling cycle, never mutated.
type SupplyDocument struct {
	RequestID    int
	OwnerName    string
	ApproverName string
	Items        []string
}

// ClaimsDocument extends SupplyDocument with the delivery claim fields.
type ClaimsDocument struct {
	SupplyDocument
	CourierName string
	ClaimsText  string
}

// DocumentKind discriminates the two document types produced by the worker.
type DocumentKind string

const (
	KindSupply DocumentKind = "supply"
	KindClaims DocumentKind = "claims"
)

// PendingDocument is a tagged union over the two record types so the
// orchestrator can fan out over a single list. Exactly one of Supply or
// Claims is set, according to Kind.
type PendingDocument struct {
	Kind   DocumentKind
	Supply *SupplyDocument
	Claims *ClaimsDocument
}

// RequestID returns the id of the underlying request.
func (p PendingDocument) RequestID() int {
	if p.Kind == KindClaims {
		return p.Claims.RequestID
	}
	return p.Supply.RequestID
}

// ArtifactName is the deterministic object name the generated document is
// stored under, e.g. "SupplyDocument_42.docx".
func (p PendingDocument) ArtifactName() string {
	if p.Kind == KindClaims {
		return fmt.Sprintf("ClaimsDocument_%d.docx", p.Claims.RequestID)
	}
	return fmt.Sprintf("SupplyDocument_%d.docx", p.Supply.RequestID)
}

// TargetStatus is the status the request advances to once its artifact is
// confirmed to exist in storage.
func (p PendingDocument) TargetStatus() RequestStatus {
	if p.Kind == KindClaims {
		return StatusClaimsDocumentGenerated
	}
	return StatusDetailsDocumentGenerated
}
