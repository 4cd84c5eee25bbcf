package goHMS

import "time"

// Role is the account role assigned by the API.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Resource names as used in URLs, cache keys and the permission table.
const (
	ResourceProperties = "properties"
	ResourceBuildings  = "buildings"
	ResourceUnits      = "units"
	ResourceLeases     = "leases"
	ResourceTenants    = "tenants"
)

// User is the authenticated account.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone,omitempty"`
	Bio        string    `json:"bio,omitempty"`
	Photo      string    `json:"photo,omitempty"`
	Role       Role      `json:"role"`
	Provider   string    `json:"provider,omitempty"`
	ProviderID string    `json:"providerId,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitzero"`
	UpdatedAt  time.Time `json:"updatedAt,omitzero"`
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	return &out
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration is the register request body. An empty Role is replaced by the
// configured default before validation.
type Registration struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,max=100"`
	Role     Role   `json:"role" validate:"required,oneof=ADMIN USER"`
}

/*
====================================
PROPERTIES
====================================
*/

// PropertyType classifies a property.
type PropertyType string

const (
	PropertyApartment PropertyType = "APARTMENT"
	PropertyHouse     PropertyType = "HOUSE"
	PropertyHostel    PropertyType = "HOSTEL"
)

// Property is a managed property.
type Property struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Type        PropertyType `json:"type"`
	Street      string       `json:"street,omitempty"`
	City        string       `json:"city,omitempty"`
	State       string       `json:"state,omitempty"`
	PostalCode  string       `json:"postalCode,omitempty"`
	Latitude    *float64     `json:"latitude,omitempty"`
	Longitude   *float64     `json:"longitude,omitempty"`
	OwnerID     string       `json:"ownerId"`
	IsActive    bool         `json:"isActive"`
	Verified    bool         `json:"verified"`
	CreatedAt   time.Time    `json:"createdAt,omitzero"`
	UpdatedAt   time.Time    `json:"updatedAt,omitzero"`
}

// PropertyInput creates or replaces a property.
type PropertyInput struct {
	Title       string       `json:"title" validate:"required,max=200"`
	Description string       `json:"description,omitempty"`
	Type        PropertyType `json:"type" validate:"required,oneof=APARTMENT HOUSE HOSTEL"`
	Street      string       `json:"street" validate:"required"`
	City        string       `json:"city" validate:"required"`
	State       string       `json:"state" validate:"required"`
	PostalCode  string       `json:"postalCode,omitempty"`
	Latitude    *float64     `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64     `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	OwnerID     string       `json:"ownerId" validate:"required"`
}

/*
====================================
BUILDINGS
====================================
*/

// Address is a building's street address.
type Address struct {
	Street     string   `json:"street" validate:"required"`
	City       string   `json:"city" validate:"required"`
	State      string   `json:"state" validate:"required"`
	PostalCode string   `json:"postalCode" validate:"required"`
	Country    string   `json:"country"`
	Longitude  *float64 `json:"longitude,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
}

// Building groups units within a property.
type Building struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PropertyID string    `json:"propertyId"`
	Address    *Address  `json:"address,omitempty"`
	Floors     *int      `json:"floors,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitzero"`
	UpdatedAt  time.Time `json:"updatedAt,omitzero"`
}

// BuildingInput creates or replaces a building. An empty country defaults to Nigeria.
type BuildingInput struct {
	Name       string  `json:"name" validate:"required"`
	PropertyID string  `json:"propertyId" validate:"required"`
	Floors     *int    `json:"floors,omitempty" validate:"omitempty,gte=0"`
	Address    Address `json:"address"`
}

func (in *BuildingInput) applyDefaults() {
	if in.Address.Country == "" {
		in.Address.Country = "Nigeria"
	}
}

/*
====================================
UNITS
====================================
*/

// UnitStatus is the occupancy state of a unit.
type UnitStatus string

const (
	UnitAvailable   UnitStatus = "AVAILABLE"
	UnitOccupied    UnitStatus = "OCCUPIED"
	UnitMaintenance UnitStatus = "MAINTENANCE"
	UnitReserved    UnitStatus = "RESERVED"
)

// Unit is a rentable unit.
type Unit struct {
	ID            string     `json:"id"`
	UnitNumber    string     `json:"unitNumber"`
	Floor         *int       `json:"floor,omitempty"`
	Bedrooms      *int       `json:"bedrooms,omitempty"`
	Bathrooms     *int       `json:"bathrooms,omitempty"`
	Sqft          *int       `json:"sqft,omitempty"`
	Status        UnitStatus `json:"status"`
	RentAmount    float64    `json:"rentAmount"`
	DepositAmount *float64   `json:"depositAmount,omitempty"`
	PropertyID    string     `json:"propertyId"`
	BuildingID    string     `json:"buildingId,omitempty"`
	OccupantID    string     `json:"occupantId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt,omitzero"`
	UpdatedAt     time.Time  `json:"updatedAt,omitzero"`
}

// UnitInput creates or replaces a unit.
type UnitInput struct {
	UnitNumber    string     `json:"unitNumber" validate:"required"`
	PropertyID    string     `json:"propertyId" validate:"required"`
	BuildingID    string     `json:"buildingId,omitempty"`
	Floor         *int       `json:"floor,omitempty"`
	Bedrooms      *int       `json:"bedrooms,omitempty" validate:"omitempty,gte=0"`
	Bathrooms     *int       `json:"bathrooms,omitempty" validate:"omitempty,gte=0"`
	Sqft          *int       `json:"sqft,omitempty" validate:"omitempty,gte=0"`
	RentAmount    float64    `json:"rentAmount" validate:"gte=0"`
	DepositAmount *float64   `json:"depositAmount,omitempty" validate:"omitempty,gte=0"`
	Status        UnitStatus `json:"status" validate:"required,oneof=AVAILABLE OCCUPIED MAINTENANCE RESERVED"`
	OccupantID    string     `json:"occupantId,omitempty"`
}

/*
====================================
LEASES
====================================
*/

// LeaseStatus is the lifecycle state of a lease.
type LeaseStatus string

const (
	LeasePending    LeaseStatus = "PENDING"
	LeaseActive     LeaseStatus = "ACTIVE"
	LeaseTerminated LeaseStatus = "TERMINATED"
	LeaseExpired    LeaseStatus = "EXPIRED"
)

// Lease binds a tenant to a unit for a period.
type Lease struct {
	ID              string      `json:"id"`
	UnitID          string      `json:"unitId"`
	TenantID        string      `json:"tenantId"`
	StartDate       string      `json:"startDate"`
	EndDate         string      `json:"endDate"`
	RentAmount      float64     `json:"rentAmount"`
	SecurityDeposit *float64    `json:"securityDeposit,omitempty"`
	Status          LeaseStatus `json:"status"`
	CreatedAt       time.Time   `json:"createdAt,omitzero"`
	UpdatedAt       time.Time   `json:"updatedAt,omitzero"`
}

// LeaseInput creates or replaces a lease. EndDate must be after StartDate.
type LeaseInput struct {
	UnitID          string      `json:"unitId" validate:"required"`
	TenantID        string      `json:"tenantId" validate:"required"`
	StartDate       string      `json:"startDate" validate:"required,date"`
	EndDate         string      `json:"endDate" validate:"required,date,after=StartDate"`
	RentAmount      float64     `json:"rentAmount" validate:"gte=0"`
	SecurityDeposit *float64    `json:"securityDeposit,omitempty" validate:"omitempty,gte=0"`
	Status          LeaseStatus `json:"status" validate:"required,oneof=PENDING ACTIVE TERMINATED EXPIRED"`
}

/*
====================================
TENANTS
====================================
*/

// Tenant is the tenant profile attached to a user.
type Tenant struct {
	ID               string `json:"id"`
	UserID           string `json:"userId"`
	MovedInAt        string `json:"movedInAt,omitempty"`
	MovedOutAt       string `json:"movedOutAt,omitempty"`
	EmergencyContact string `json:"emergencyContact,omitempty"`
}

// TenantInput creates or replaces a tenant profile.
type TenantInput struct {
	UserID           string `json:"userId" validate:"required"`
	MovedInAt        string `json:"movedInAt,omitempty" validate:"omitempty,date"`
	MovedOutAt       string `json:"movedOutAt,omitempty" validate:"omitempty,date"`
	EmergencyContact string `json:"emergencyContact,omitempty"`
}

/*
====================================
LISTING
====================================
*/

// ListParams selects one page of a collection. Zero Page and Limit take the
// defaults (1 and the configured page size). Filters are sent as query
// parameters; their order does not affect caching.
type ListParams struct {
	Page    int
	Limit   int
	Search  string
	Filters map[string]any
}

// Page is the pagination envelope of every list endpoint.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// SessionSnapshot is a point-in-time view of the session.
type SessionSnapshot struct {
	Authenticated bool
	Loading       bool
	User          *User
	// AccessTokenExpiry is read from the token without verifying it. Zero when
	// there is no token or it carries no expiry.
	AccessTokenExpiry time.Time
	// RefreshExpiry is the refresh cookie expiry, zero when absent or a session cookie.
	RefreshExpiry time.Time
}
