package pipeline

import "github.com/dvloznov/revenue-recon/internal/domain"

// Fixed input contract for the two revenue extracts.
// The column names come from the upstream exports and are not configurable
// at runtime; see SourceSchema for how they map onto the shared schema.
const (
	// DefaultBilledPath is the internal billing (RPM) extract.
	DefaultBilledPath = "rpm_data.tsv"

	// DefaultRegisteredPath is the CRM registration (SFDC) extract.
	DefaultRegisteredPath = "sfdc_data.tsv"

	// DefaultOutputDir is where one CSV per run is written.
	DefaultOutputDir = "output"

	// DefaultReportMonth is the month asked about by the count-in-month question.
	DefaultReportMonth domain.MonthKey = "202208"

	// DefaultDelimiter separates fields in both extracts.
	DefaultDelimiter = '\t'

	// OutputTimeLayout names output files by run start time.
	OutputTimeLayout = "2006-01-02 15_04_05"
)

// Shared schema column names.
const (
	ColumnSupplier   = "Supplier"
	ColumnMonth      = "Month"
	ColumnRegistered = "Registered"
	ColumnBilled     = "Billed"
)

// OutputHeader is the fixed column order of the output file.
var OutputHeader = []string{ColumnSupplier, ColumnRegistered, ColumnBilled, ColumnMonth}

// BilledSchema maps the RPM billing extract onto the shared schema.
var BilledSchema = SourceSchema{
	Name:         "rpm",
	EntityColumn: "Agency",
	DateColumn:   "Added",
	AmountColumn: "Net billed",
	Target:       ColumnBilled,
}

// RegisteredSchema maps the SFDC registration extract onto the shared schema.
var RegisteredSchema = SourceSchema{
	Name:         "sfdc",
	EntityColumn: "Advisory Partner",
	DateColumn:   "Date",
	AmountColumn: "Amount",
	Target:       ColumnRegistered,
}
