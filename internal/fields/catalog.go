package fields

// UnitField enumerates the editable attributes of a unit
type UnitField string

const (
	UnitRent          UnitField = "rent"
	UnitDeposit       UnitField = "deposit"
	UnitBedrooms      UnitField = "bedrooms"
	UnitBathrooms     UnitField = "bathrooms"
	UnitSquareFeet    UnitField = "square_feet"
	UnitFloor         UnitField = "floor"
	UnitFloorPlan     UnitField = "floor_plan"
	UnitNumber        UnitField = "unit_number"
	UnitAvailableDate UnitField = "available_date"
)

var unitOrder = []UnitField{
	UnitRent, UnitDeposit, UnitBedrooms, UnitBathrooms, UnitSquareFeet,
	UnitFloor, UnitFloorPlan, UnitNumber, UnitAvailableDate,
}

var unitSpecs = map[UnitField]Spec{
	UnitRent:          {DataType: DataTypeNumber, Label: "Rent", Prefix: "$", Suffix: "/mo"},
	UnitDeposit:       {DataType: DataTypeNumber, Label: "Deposit", Prefix: "$"},
	UnitBedrooms:      {DataType: DataTypeNumber, Label: "Bedrooms", Suffix: " bd"},
	UnitBathrooms:     {DataType: DataTypeNumber, Label: "Bathrooms", Suffix: " ba"},
	UnitSquareFeet:    {DataType: DataTypeNumber, Label: "Size", Suffix: " sq ft"},
	UnitFloor:         {DataType: DataTypeNumber, Label: "Floor"},
	UnitFloorPlan:     {DataType: DataTypeText, Label: "Floor plan"},
	UnitNumber:        {DataType: DataTypeText, Label: "Unit #"},
	UnitAvailableDate: {DataType: DataTypeText, Label: "Available"},
}

func (f UnitField) Target() TargetType { return TargetUnit }
func (f UnitField) Name() string       { return string(f) }
func (f UnitField) Spec() Spec         { return unitSpecs[f] }
func (UnitField) sealed()              {}

// BuildingField enumerates the editable attributes of a building
type BuildingField string

const (
	BuildingName         BuildingField = "name"
	BuildingAddress      BuildingField = "address"
	BuildingNeighborhood BuildingField = "neighborhood"
	BuildingYearBuilt    BuildingField = "year_built"
	BuildingTotalUnits   BuildingField = "total_units"
	BuildingFloors       BuildingField = "floors"
	BuildingPetPolicy    BuildingField = "pet_policy"
	BuildingParking      BuildingField = "parking"
	BuildingManagement   BuildingField = "management_company"
	BuildingPhone        BuildingField = "leasing_phone"
)

var buildingOrder = []BuildingField{
	BuildingName, BuildingAddress, BuildingNeighborhood, BuildingYearBuilt, BuildingTotalUnits,
	BuildingFloors, BuildingPetPolicy, BuildingParking, BuildingManagement, BuildingPhone,
}

var buildingSpecs = map[BuildingField]Spec{
	BuildingName:         {DataType: DataTypeText, Label: "Name"},
	BuildingAddress:      {DataType: DataTypeText, Label: "Address"},
	BuildingNeighborhood: {DataType: DataTypeText, Label: "Neighborhood"},
	BuildingYearBuilt:    {DataType: DataTypeNumber, Label: "Year built"},
	BuildingTotalUnits:   {DataType: DataTypeNumber, Label: "Units"},
	BuildingFloors:       {DataType: DataTypeNumber, Label: "Floors"},
	BuildingPetPolicy:    {DataType: DataTypeText, Label: "Pet policy"},
	BuildingParking:      {DataType: DataTypeText, Label: "Parking"},
	BuildingManagement:   {DataType: DataTypeText, Label: "Management"},
	BuildingPhone:        {DataType: DataTypeText, Label: "Leasing phone"},
}

func (f BuildingField) Target() TargetType { return TargetBuilding }
func (f BuildingField) Name() string       { return string(f) }
func (f BuildingField) Spec() Spec         { return buildingSpecs[f] }
func (BuildingField) sealed()              {}

// ClientField enumerates the editable attributes of a client
type ClientField string

const (
	ClientFirstName          ClientField = "first_name"
	ClientLastName           ClientField = "last_name"
	ClientEmail              ClientField = "email"
	ClientPhone              ClientField = "phone"
	ClientNotes              ClientField = "notes"
	ClientBudgetMin          ClientField = "budget_min"
	ClientBudgetMax          ClientField = "budget_max"
	ClientBedrooms           ClientField = "bedrooms"
	ClientNeighborhoods      ClientField = "neighborhoods"
	ClientMoveInDate         ClientField = "move_in_date"
	ClientHasPets            ClientField = "has_pets"
	ClientNeedsParking       ClientField = "needs_parking"
	ClientWantsInUnitLaundry ClientField = "wants_in_unit_laundry"
	ClientCommuteAddress     ClientField = "commute_address"
	ClientMaxCommuteMinutes  ClientField = "max_commute_minutes"
	ClientCommuteMode        ClientField = "commute_mode"
)

var clientOrder = []ClientField{
	ClientFirstName, ClientLastName, ClientEmail, ClientPhone, ClientNotes,
	ClientBudgetMin, ClientBudgetMax, ClientBedrooms, ClientNeighborhoods, ClientMoveInDate,
	ClientHasPets, ClientNeedsParking, ClientWantsInUnitLaundry,
	ClientCommuteAddress, ClientMaxCommuteMinutes, ClientCommuteMode,
}

var clientSpecs = map[ClientField]Spec{
	ClientFirstName:          {DataType: DataTypeText, Label: "First name"},
	ClientLastName:           {DataType: DataTypeText, Label: "Last name"},
	ClientEmail:              {DataType: DataTypeText, Label: "Email"},
	ClientPhone:              {DataType: DataTypeText, Label: "Phone"},
	ClientNotes:              {DataType: DataTypeText, Label: "Notes"},
	ClientBudgetMin:          {DataType: DataTypeNumber, Label: "Min budget", Prefix: "$"},
	ClientBudgetMax:          {DataType: DataTypeNumber, Label: "Max budget", Prefix: "$"},
	ClientBedrooms:           {DataType: DataTypeNumber, Label: "Bedrooms", Suffix: " bd"},
	ClientNeighborhoods:      {DataType: DataTypeList, Label: "Neighborhoods"},
	ClientMoveInDate:         {DataType: DataTypeText, Label: "Move-in date"},
	ClientHasPets:            {DataType: DataTypeBoolean, Label: "Has pets"},
	ClientNeedsParking:       {DataType: DataTypeBoolean, Label: "Needs parking"},
	ClientWantsInUnitLaundry: {DataType: DataTypeBoolean, Label: "In-unit laundry"},
	ClientCommuteAddress:     {DataType: DataTypeText, Label: "Commute to"},
	ClientMaxCommuteMinutes:  {DataType: DataTypeNumber, Label: "Max commute", Suffix: " min"},
	ClientCommuteMode:        {DataType: DataTypeText, Label: "Commute mode"},
}

// preferenceFields drive listing matching; changing one should trigger a re-match
var preferenceFields = map[ClientField]bool{
	ClientBudgetMin:          true,
	ClientBudgetMax:          true,
	ClientBedrooms:           true,
	ClientNeighborhoods:      true,
	ClientHasPets:            true,
	ClientNeedsParking:       true,
	ClientWantsInUnitLaundry: true,
	ClientCommuteAddress:     true,
	ClientMaxCommuteMinutes:  true,
	ClientCommuteMode:        true,
}

func (f ClientField) Target() TargetType { return TargetClient }
func (f ClientField) Name() string       { return string(f) }
func (f ClientField) Spec() Spec         { return clientSpecs[f] }
func (ClientField) sealed()              {}

// IsPreference reports whether the field feeds listing matching.
// Contact info and free-text fields are never preference fields.
func (f ClientField) IsPreference() bool {
	return preferenceFields[f]
}
