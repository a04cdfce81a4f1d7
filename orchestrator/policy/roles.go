// Copyright 2025 ChainSight
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package policy defines the closed set of user roles, their data and
// region permissions, and the one-hop role hierarchy used to compute
// effective permissions. The tables are immutable and loaded at compile
// time; an unknown role name resolves to a typed error rather than a
// silent miss.
package policy

import (
	"errors"
	"fmt"
	"sort"
)

// Role is one of the closed set of user roles.
type Role string

const (
	RoleSupplyChainManager      Role = "supply_chain_manager"
	RoleFinanceManager          Role = "finance_manager"
	RolePlanningManager         Role = "planning_manager"
	RoleGlobalOperationsManager Role = "global_operations_manager"
	RoleLogisticsSpecialist     Role = "logistics_specialist"
	RoleSupplierManager         Role = "supplier_manager"
)

// ErrUnknownRole is returned when a role name is not in the closed set.
var ErrUnknownRole = errors.New("unknown role")

// Permissions describes what a role may access.
type Permissions struct {
	AllowedData         map[string]bool
	AllowedRegions      map[string]bool
	SensitiveDataAccess bool
	Description         string
}

// AllowedDataList returns the allowed table categories in sorted order.
func (p Permissions) AllowedDataList() []string {
	out := make([]string, 0, len(p.AllowedData))
	for name := range p.AllowedData {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CanAccessTable reports whether the permissions cover a table category.
func (p Permissions) CanAccessTable(table string) bool {
	return p.AllowedData[table]
}

// CanAccessRegion reports whether the permissions cover a region. A role
// whose regions include "all" covers every region.
func (p Permissions) CanAccessRegion(region string) bool {
	if p.AllowedRegions["all"] {
		return true
	}
	return p.AllowedRegions[region]
}

// roleTable is the declared (pre-union) permission set per role.
var roleTable = map[Role]Permissions{
	RoleSupplyChainManager: {
		AllowedData:         set("orders", "customers", "products", "shipping"),
		AllowedRegions:      set("all"),
		SensitiveDataAccess: false,
		Description:         "Manages supply chain operations, no access to financial data.",
	},
	RoleFinanceManager: {
		AllowedData:         set("orders", "order_items"),
		AllowedRegions:      set("all"),
		SensitiveDataAccess: true,
		Description:         "Access to financial data like profit and sales, restricted from operational data like shipping.",
	},
	RolePlanningManager: {
		AllowedData:         set("orders", "products", "shipping"),
		AllowedRegions:      set("all"),
		SensitiveDataAccess: false,
		Description:         "Access to inventory, logistics, and forecasting data for planning purposes.",
	},
	RoleGlobalOperationsManager: {
		AllowedData:         set("orders", "customers", "products", "shipping", "order_items"),
		AllowedRegions:      set("all"),
		SensitiveDataAccess: true,
		Description:         "Oversees all operations with full data access.",
	},
	RoleLogisticsSpecialist: {
		AllowedData:         set("orders", "shipping"),
		AllowedRegions:      set("all"),
		SensitiveDataAccess: false,
		Description:         "Focuses on logistics and shipping operations, no access to financial or product data.",
	},
	RoleSupplierManager: {
		AllowedData:         set("products"),
		AllowedRegions:      set("all"),
		SensitiveDataAccess: false,
		Description:         "Manages supplier relationships, restricted to product-related data.",
	},
}

// hierarchy maps a role to the subordinate roles whose permissions are
// unioned into its effective permissions. Inclusion is one hop only; it
// is not transitive.
var hierarchy = map[Role][]Role{
	RoleGlobalOperationsManager: {
		RoleFinanceManager,
		RolePlanningManager,
		RoleSupplyChainManager,
		RoleLogisticsSpecialist,
		RoleSupplierManager,
	},
	RolePlanningManager: {
		RoleSupplyChainManager,
		RoleLogisticsSpecialist,
	},
}

// Parse converts a role name into a Role, or ErrUnknownRole.
func Parse(name string) (Role, error) {
	role := Role(name)
	if _, ok := roleTable[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, name)
	}
	return role, nil
}

// Subordinates returns the one-hop subordinate roles of role.
func Subordinates(role Role) []Role {
	return hierarchy[role]
}

// Declared returns the role's own permission set, without the hierarchy
// union.
func Declared(role Role) (Permissions, error) {
	perms, ok := roleTable[role]
	if !ok {
		return Permissions{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return clone(perms), nil
}

// Effective returns the role's permissions unioned with those of every
// subordinate role one hop below it: allowed_data and allowed_regions are
// set-unions, sensitive access is true if any contributing role has it.
func Effective(role Role) (Permissions, error) {
	perms, err := Declared(role)
	if err != nil {
		return Permissions{}, err
	}

	for _, sub := range hierarchy[role] {
		subPerms, ok := roleTable[sub]
		if !ok {
			continue
		}
		for table := range subPerms.AllowedData {
			perms.AllowedData[table] = true
		}
		for region := range subPerms.AllowedRegions {
			perms.AllowedRegions[region] = true
		}
		perms.SensitiveDataAccess = perms.SensitiveDataAccess || subPerms.SensitiveDataAccess
	}
	return perms, nil
}

// EffectiveForName parses and resolves in one step.
func EffectiveForName(name string) (Permissions, error) {
	role, err := Parse(name)
	if err != nil {
		return Permissions{}, err
	}
	return Effective(role)
}

func set(items ...string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		out[item] = true
	}
	return out
}

func clone(p Permissions) Permissions {
	out := Permissions{
		AllowedData:         make(map[string]bool, len(p.AllowedData)),
		AllowedRegions:      make(map[string]bool, len(p.AllowedRegions)),
		SensitiveDataAccess: p.SensitiveDataAccess,
		Description:         p.Description,
	}
	for k, v := range p.AllowedData {
		out.AllowedData[k] = v
	}
	for k, v := range p.AllowedRegions {
		out.AllowedRegions[k] = v
	}
	return out
}
