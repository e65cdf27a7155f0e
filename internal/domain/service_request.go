package domain

import "time"

// ServiceType is the family of services a request belongs to.
type ServiceType string

const (
	ServiceTypeKRA            ServiceType = "KRA"
	ServiceTypeNTSA           ServiceType = "NTSA"
	ServiceTypeBusiness       ServiceType = "BUSINESS"
	ServiceTypeHR             ServiceType = "HR"
	ServiceTypeComputerRepair ServiceType = "COMPUTER_REPAIR"
)

// ServiceTypes lists every supported service type.
var ServiceTypes = []ServiceType{
	ServiceTypeKRA,
	ServiceTypeNTSA,
	ServiceTypeBusiness,
	ServiceTypeHR,
	ServiceTypeComputerRepair,
}

// Valid reports whether t is a supported service type.
func (t ServiceType) Valid() bool {
	for _, st := range ServiceTypes {
		if st == t {
			return true
		}
	}
	return false
}

// Label is a short human name used in payment descriptions.
func (t ServiceType) Label() string {
	switch t {
	case ServiceTypeKRA:
		return "KRA"
	case ServiceTypeNTSA:
		return "NTSA"
	case ServiceTypeBusiness:
		return "Business"
	case ServiceTypeHR:
		return "HR"
	case ServiceTypeComputerRepair:
		return "PC Repair"
	default:
		return string(t)
	}
}

// RequestStatus is the fulfillment status of a service request.
type RequestStatus string

const (
	RequestStatusSubmitted  RequestStatus = "submitted"
	RequestStatusProcessing RequestStatus = "processing"
	RequestStatusCompleted  RequestStatus = "completed"
	RequestStatusCancelled  RequestStatus = "cancelled"
)

// Valid reports whether s is a known request status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusSubmitted, RequestStatusProcessing, RequestStatusCompleted, RequestStatusCancelled:
		return true
	}
	return false
}

// ServiceRequest is a customer's booking for one priced sub-service.
type ServiceRequest struct {
	ID             string
	ServiceType    ServiceType
	SubService     string
	FullName       string
	Email          string
	Phone          string
	NationalID     string
	ServiceDetails map[string]any

	// Amount is resolved from pricing when the request is created and never changes.
	Amount int64

	// PaymentReference is the correlation id of the latest payment attempt.
	PaymentReference string
	PaymentStatus    PaymentStatus
	Status           RequestStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsPaid reports whether payment has been confirmed.
func (r *ServiceRequest) IsPaid() bool {
	return r.PaymentStatus == PaymentStatusCompleted
}

// CanTransitionTo reports whether an operator may move the request to next.
func (r *ServiceRequest) CanTransitionTo(next RequestStatus) bool {
	switch r.Status {
	case RequestStatusSubmitted:
		switch next {
		case RequestStatusProcessing:
			return r.IsPaid()
		case RequestStatusCancelled:
			return true
		}
	case RequestStatusProcessing:
		return next == RequestStatusCompleted || next == RequestStatusCancelled
	}
	return false
}
