package stubapi

import (
	"time"

	goHMS "github.com/MrEthical07/goHMS"
)

func propertyDef() resourceDef[goHMS.Property, goHMS.PropertyInput] {
	return resourceDef[goHMS.Property, goHMS.PropertyInput]{
		name: goHMS.ResourceProperties,
		build: func(id string, in goHMS.PropertyInput, now time.Time, prev *goHMS.Property) goHMS.Property {
			p := goHMS.Property{
				ID:          id,
				Title:       in.Title,
				Description: in.Description,
				Type:        in.Type,
				Street:      in.Street,
				City:        in.City,
				State:       in.State,
				PostalCode:  in.PostalCode,
				Latitude:    in.Latitude,
				Longitude:   in.Longitude,
				OwnerID:     in.OwnerID,
				IsActive:    true,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if prev != nil {
				p.IsActive = prev.IsActive
				p.Verified = prev.Verified
				p.CreatedAt = prev.CreatedAt
			}
			return p
		},
		owner: func(p goHMS.Property) string { return p.OwnerID },
	}
}

func buildingDef() resourceDef[goHMS.Building, goHMS.BuildingInput] {
	return resourceDef[goHMS.Building, goHMS.BuildingInput]{
		name: goHMS.ResourceBuildings,
		build: func(id string, in goHMS.BuildingInput, now time.Time, prev *goHMS.Building) goHMS.Building {
			addr := in.Address
			b := goHMS.Building{
				ID:         id,
				Name:       in.Name,
				PropertyID: in.PropertyID,
				Address:    &addr,
				Floors:     in.Floors,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if prev != nil {
				b.CreatedAt = prev.CreatedAt
			}
			return b
		},
		defaults: func(in *goHMS.BuildingInput) {
			if in.Address.Country == "" {
				in.Address.Country = "Nigeria"
			}
		},
	}
}

func unitDef() resourceDef[goHMS.Unit, goHMS.UnitInput] {
	return resourceDef[goHMS.Unit, goHMS.UnitInput]{
		name: goHMS.ResourceUnits,
		build: func(id string, in goHMS.UnitInput, now time.Time, prev *goHMS.Unit) goHMS.Unit {
			u := goHMS.Unit{
				ID:            id,
				UnitNumber:    in.UnitNumber,
				Floor:         in.Floor,
				Bedrooms:      in.Bedrooms,
				Bathrooms:     in.Bathrooms,
				Sqft:          in.Sqft,
				Status:        in.Status,
				RentAmount:    in.RentAmount,
				DepositAmount: in.DepositAmount,
				PropertyID:    in.PropertyID,
				BuildingID:    in.BuildingID,
				OccupantID:    in.OccupantID,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if prev != nil {
				u.CreatedAt = prev.CreatedAt
			}
			return u
		},
	}
}

// leaseDef owns a lease through its tenant's user.
func leaseDef(s *Server) resourceDef[goHMS.Lease, goHMS.LeaseInput] {
	return resourceDef[goHMS.Lease, goHMS.LeaseInput]{
		name: goHMS.ResourceLeases,
		build: func(id string, in goHMS.LeaseInput, now time.Time, prev *goHMS.Lease) goHMS.Lease {
			l := goHMS.Lease{
				ID:              id,
				UnitID:          in.UnitID,
				TenantID:        in.TenantID,
				StartDate:       in.StartDate,
				EndDate:         in.EndDate,
				RentAmount:      in.RentAmount,
				SecurityDeposit: in.SecurityDeposit,
				Status:          in.Status,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if prev != nil {
				l.CreatedAt = prev.CreatedAt
			}
			return l
		},
		owner: func(l goHMS.Lease) string {
			t, found := s.tenants.get(l.TenantID)
			if !found {
				return ""
			}
			return t.UserID
		},
	}
}

func tenantDef() resourceDef[goHMS.Tenant, goHMS.TenantInput] {
	return resourceDef[goHMS.Tenant, goHMS.TenantInput]{
		name: goHMS.ResourceTenants,
		build: func(id string, in goHMS.TenantInput, _ time.Time, _ *goHMS.Tenant) goHMS.Tenant {
			return goHMS.Tenant{
				ID:               id,
				UserID:           in.UserID,
				MovedInAt:        in.MovedInAt,
				MovedOutAt:       in.MovedOutAt,
				EmergencyContact: in.EmergencyContact,
			}
		},
		owner: func(t goHMS.Tenant) string { return t.UserID },
	}
}
