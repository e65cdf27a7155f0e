package domain

import "time"

// PricingEntry is the price of one sub-service, in whole shillings.
type PricingEntry struct {
	ServiceType ServiceType
	SubService  string
	Price       int64
	UpdatedAt   time.Time
}

// DefaultCatalog is the launch price list. It seeds the pricing table the
// first time the service starts against an empty database.
func DefaultCatalog() []PricingEntry {
	return []PricingEntry{
		{ServiceType: ServiceTypeKRA, SubService: "PIN Registration", Price: 500},
		{ServiceType: ServiceTypeKRA, SubService: "PIN Retrieval", Price: 300},
		{ServiceType: ServiceTypeKRA, SubService: "Tax Returns Filing", Price: 1000},
		{ServiceType: ServiceTypeKRA, SubService: "Tax Compliance Certificate", Price: 1500},
		{ServiceType: ServiceTypeKRA, SubService: "Nil Returns Filing", Price: 300},

		{ServiceType: ServiceTypeNTSA, SubService: "Driving License Renewal", Price: 800},
		{ServiceType: ServiceTypeNTSA, SubService: "Logbook Search", Price: 500},
		{ServiceType: ServiceTypeNTSA, SubService: "Vehicle Transfer", Price: 1500},
		{ServiceType: ServiceTypeNTSA, SubService: "Smart DL Application", Price: 1000},

		{ServiceType: ServiceTypeBusiness, SubService: "Business Name Registration", Price: 2500},
		{ServiceType: ServiceTypeBusiness, SubService: "Company Registration", Price: 10000},
		{ServiceType: ServiceTypeBusiness, SubService: "Single Business Permit", Price: 3000},
		{ServiceType: ServiceTypeBusiness, SubService: "Annual Returns", Price: 2000},

		{ServiceType: ServiceTypeHR, SubService: "Payroll Processing", Price: 5000},
		{ServiceType: ServiceTypeHR, SubService: "NSSF Registration", Price: 700},
		{ServiceType: ServiceTypeHR, SubService: "SHIF Registration", Price: 700},
		{ServiceType: ServiceTypeHR, SubService: "Employment Contract Drafting", Price: 2000},

		{ServiceType: ServiceTypeComputerRepair, SubService: "Diagnostics", Price: 500},
		{ServiceType: ServiceTypeComputerRepair, SubService: "OS Installation", Price: 1500},
		{ServiceType: ServiceTypeComputerRepair, SubService: "Virus Removal", Price: 1000},
		{ServiceType: ServiceTypeComputerRepair, SubService: "Data Recovery", Price: 3500},
		{ServiceType: ServiceTypeComputerRepair, SubService: "Screen Replacement", Price: 6000},
	}
}
