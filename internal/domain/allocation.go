package domain

import (
	"time"
)

// ConsumptionPolicy says how much of a donation record a single package may take.
type ConsumptionPolicy string

const (
	// PolicySealed units are transferred whole; a package takes all of the
	// record's remaining quantity or none of it.
	PolicySealed ConsumptionPolicy = "SEALED"
	// PolicyPartial units may be split across packages in any amount.
	PolicyPartial ConsumptionPolicy = "PARTIAL"
)

// DemandItem is one line of a help request's demand manifest.
type DemandItem struct {
	Name              string `json:"name"`
	RequestedQuantity int    `json:"requested_quantity"`
}

// DonationRecord is a read-only snapshot of one in-kind donation unit as held
// by the donation-records service. RemainingQuantity can be stale by the time
// a debit against it is submitted; the service is the authority at debit time.
type DonationRecord struct {
	ID                int               `json:"id"`
	ItemName          string            `json:"item_name"`
	WarehouseID       int               `json:"warehouse_id"`
	RemainingQuantity int               `json:"remaining_quantity"`
	Policy            ConsumptionPolicy `json:"policy"`
}

// Warehouse is one entry of the warehouse directory.
type Warehouse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// AllocationCell is the staging slot for one (item, warehouse) pair. The
// operator edits AssignedQuantity; SourceRecords keeps the store's original
// order, which is also the draw order during apportionment.
type AllocationCell struct {
	ItemName         string           `json:"item_name"`
	WarehouseID      int              `json:"warehouse_id"`
	WarehouseName    string           `json:"warehouse_name"`
	AvailableStock   int              `json:"available_stock"`
	AssignedQuantity int              `json:"assigned_quantity"`
	SourceRecords    []DonationRecord `json:"source_records"`
}

// AllocationMatrix maps item name -> warehouse id -> cell. Rows preserves the
// demand's item order because map iteration would lose it.
type AllocationMatrix struct {
	Demand []DemandItem                       `json:"demand"`
	Cells  map[string]map[int]*AllocationCell `json:"cells"`
}

// Cell returns the cell for (item, warehouse), or nil when the item has no
// stock in that warehouse.
func (m *AllocationMatrix) Cell(item string, warehouseID int) *AllocationCell {
	row, ok := m.Cells[item]
	if !ok {
		return nil
	}
	return row[warehouseID]
}

// AssignedTotal sums the operator's assignments for one item across warehouses.
func (m *AllocationMatrix) AssignedTotal(item string) int {
	total := 0
	for _, cell := range m.Cells[item] {
		total += cell.AssignedQuantity
	}
	return total
}

// Debit is one proposed deduction against a single donation record.
type Debit struct {
	DonationRecordID int `json:"donation_record_id"`
	Quantity         int `json:"quantity"`
}

// PackageMetadata is the structured form of the legacy descripcion tag string.
type PackageMetadata struct {
	RequesterCI string `json:"requester_ci"`
	RequestCode string `json:"request_code"`
	WarehouseID int    `json:"warehouse_id"`
}

// PackageCommand is the unit of work submitted to create one physical package
// tied to one warehouse. Debits keep apportionment order.
type PackageCommand struct {
	PackageName string          `json:"package_name"`
	Description string          `json:"description"`
	RequestID   int             `json:"request_id"`
	WarehouseID int             `json:"warehouse_id"`
	Metadata    PackageMetadata `json:"metadata"`
	Debits      []Debit         `json:"debits"`
}

// TotalQuantity sums the command's debits.
func (c PackageCommand) TotalQuantity() int {
	total := 0
	for _, d := range c.Debits {
		total += d.Quantity
	}
	return total
}

// OperatorContext carries the identity and home warehouse of the operator
// running the allocation. Threaded explicitly rather than read from ambient
// session state.
type OperatorContext struct {
	CI          string `json:"ci"`
	WarehouseID int    `json:"warehouse_id"`
}

// Submission status values for one warehouse's package command.
const (
	CommandPending   = "pending"
	CommandCreated   = "created"
	CommandFailed    = "failed"
	CommandDelivered = "delivered"
)

// CommandOutcome records how one warehouse's submission went.
type CommandOutcome struct {
	WarehouseID int    `dynamodbav:"warehouse_id" json:"warehouse_id"`
	Status      string `dynamodbav:"status"       json:"status"`
	Quantity    int    `dynamodbav:"quantity"     json:"quantity"`
	Error       string `dynamodbav:"error,omitempty" json:"error,omitempty"`
}

// AllocationSession is the audit record of one workflow run, persisted so an
// operator can see which warehouses succeeded and retry only the failed ones.
// Outcomes is keyed by decimal warehouse id.
type AllocationSession struct {
	SessionID         string                    `dynamodbav:"session_id"         json:"session_id"`
	RequestID         int                       `dynamodbav:"request_id"         json:"request_id"`
	OperatorCI        string                    `dynamodbav:"operator_ci"        json:"operator_ci"`
	OperatorWarehouse int                       `dynamodbav:"operator_warehouse" json:"operator_warehouse"`
	Demand            []DemandItem              `dynamodbav:"demand"             json:"demand"`
	Records           []DonationRecord          `dynamodbav:"records"            json:"records"`
	Warehouses        []Warehouse               `dynamodbav:"warehouses"         json:"warehouses"`
	Outcomes          map[string]CommandOutcome `dynamodbav:"outcomes"           json:"outcomes"`
	Assignments       []CellAssignment          `dynamodbav:"assignments"        json:"assignments,omitempty"`
	CreatedAt         time.Time                 `dynamodbav:"created_at"         json:"created_at"`
	UpdatedAt         time.Time                 `dynamodbav:"updated_at"         json:"updated_at"`
}

// OpenAllocationRequest starts a session for one help request.
type OpenAllocationRequest struct {
	RequestID   int    `json:"request_id" binding:"required"`
	Manifest    string `json:"manifest"`
	OperatorCI  string `json:"operator_ci" binding:"required"`
	WarehouseID int    `json:"warehouse_id"`
}

// CellAssignment is one user-edited (item, warehouse) quantity. Applied
// assignments are persisted with the session so a retry can restore the
// already-packaged warehouses' share of the demand.
type CellAssignment struct {
	ItemName    string `dynamodbav:"item_name"    json:"item_name" binding:"required"`
	WarehouseID int    `dynamodbav:"warehouse_id" json:"warehouse_id" binding:"required"`
	Quantity    int    `dynamodbav:"quantity"     json:"quantity"`
}

// SubmitAllocationRequest carries the operator's edits back for reconciliation.
type SubmitAllocationRequest struct {
	Assignments []CellAssignment `json:"assignments" binding:"required"`
}

// SubmissionReport is returned after reconciliation and submission: exactly
// which warehouses were packaged and which need a retry. InternalErrors lists
// consistency failures that are not the operator's fault.
type SubmissionReport struct {
	SessionID      string           `json:"session_id"`
	Outcomes       []CommandOutcome `json:"outcomes"`
	Succeeded      []int            `json:"succeeded_warehouses"`
	Failed         []int            `json:"failed_warehouses"`
	InternalErrors []string         `json:"internal_errors,omitempty"`
}
