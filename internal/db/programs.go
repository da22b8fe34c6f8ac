package db

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"
)

const (
	ProgramsTable  = "programs"
	ServicerColumn = "loan_servicer"
	ProgramColumn  = "program_name"
)

var (
	// ErrUnknownColumn is returned for a column the programs table lacks.
	ErrUnknownColumn = errors.New("unknown parameter column")
	// ErrProgramNotFound is returned when no program matches.
	ErrProgramNotFound = errors.New("program not found")

	columnNameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)
)

// ProgramRef identifies a program.
type ProgramRef struct {
	Servicer string `json:"servicer"`
	Program  string `json:"program"`
}

// Program is one row of the programs table. Columns lists the attribute
// columns in table order; Attributes holds their non-empty values.
type Program struct {
	ProgramRef
	Columns    []string          `json:"-"`
	Attributes map[string]string `json:"attributes"`
}

// Value returns the attribute value of column, or "".
func (p *Program) Value(column string) string {
	return p.Attributes[column]
}

// ProgramValue is one program's value of one column.
type ProgramValue struct {
	ProgramRef
	Value string `json:"value"`
}

// ValidateColumnName checks that name is usable as a programs column.
func ValidateColumnName(name string) error {
	if !columnNameRegexp.MatchString(name) {
		return fmt.Errorf("invalid column name %q", name)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type columnInfo struct {
	Cid  int
	Name string
	Type string
}

// ProgramColumns returns every column of the programs table in table order.
func ProgramColumns(db *gorm.DB) ([]string, error) {
	var infos []columnInfo
	if err := db.Raw("PRAGMA table_info(" + quoteIdent(ProgramsTable) + ")").Scan(&infos).Error; err != nil {
		return nil, fmt.Errorf("read programs columns: %w", err)
	}
	columns := make([]string, 0, len(infos))
	for _, info := range infos {
		columns = append(columns, info.Name)
	}
	return columns, nil
}

// AttributeColumns returns the programs columns other than the key columns.
func AttributeColumns(db *gorm.DB) ([]string, error) {
	columns, err := ProgramColumns(db)
	if err != nil {
		return nil, err
	}
	attrs := make([]string, 0, len(columns))
	for _, c := range columns {
		if c != ServicerColumn && c != ProgramColumn {
			attrs = append(attrs, c)
		}
	}
	return attrs, nil
}

// EnsureProgramsTable creates the programs table keyed by (servicer,
// program) with one TEXT column per attribute, and adds attribute columns
// missing from an existing table.
func EnsureProgramsTable(db *gorm.DB, columns []string) error {
	defs := []string{
		quoteIdent(ServicerColumn) + " TEXT NOT NULL",
		quoteIdent(ProgramColumn) + " TEXT NOT NULL",
	}
	for _, c := range columns {
		if c == ServicerColumn || c == ProgramColumn {
			continue
		}
		if err := ValidateColumnName(c); err != nil {
			return err
		}
		defs = append(defs, quoteIdent(c)+" TEXT")
	}
	defs = append(defs, "PRIMARY KEY ("+quoteIdent(ServicerColumn)+", "+quoteIdent(ProgramColumn)+")")

	ddl := "CREATE TABLE IF NOT EXISTS " + quoteIdent(ProgramsTable) + " (" + strings.Join(defs, ", ") + ")"
	if err := db.Exec(ddl).Error; err != nil {
		return fmt.Errorf("create programs table: %w", err)
	}

	existing, err := ProgramColumns(db)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}
	for _, c := range columns {
		if have[c] {
			continue
		}
		if err := db.Exec("ALTER TABLE " + quoteIdent(ProgramsTable) + " ADD COLUMN " + quoteIdent(c) + " TEXT").Error; err != nil {
			return fmt.Errorf("add programs column %q: %w", c, err)
		}
	}
	return nil
}

// requireColumn fails with ErrUnknownColumn unless column is an attribute
// column. Only names that pass this check are ever interpolated into SQL.
func requireColumn(db *gorm.DB, column string) error {
	columns, err := AttributeColumns(db)
	if err != nil {
		return err
	}
	for _, c := range columns {
		if c == column {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
}

// ListServicers returns the distinct servicers in name order.
func ListServicers(db *gorm.DB) ([]string, error) {
	var servicers []string
	err := db.Raw("SELECT DISTINCT " + quoteIdent(ServicerColumn) + " FROM " + quoteIdent(ProgramsTable) +
		" ORDER BY " + quoteIdent(ServicerColumn)).Scan(&servicers).Error
	if err != nil {
		return nil, fmt.Errorf("list servicers: %w", err)
	}
	return servicers, nil
}

// ListPrograms returns program references, optionally for one servicer.
func ListPrograms(db *gorm.DB, servicer string) ([]ProgramRef, error) {
	query := "SELECT " + quoteIdent(ServicerColumn) + ", " + quoteIdent(ProgramColumn) + " FROM " + quoteIdent(ProgramsTable)
	var args []any
	if servicer != "" {
		query += " WHERE " + quoteIdent(ServicerColumn) + " = ? COLLATE NOCASE"
		args = append(args, servicer)
	}
	query += " ORDER BY " + quoteIdent(ServicerColumn) + ", " + quoteIdent(ProgramColumn)

	rows, err := db.Raw(query, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	var refs []ProgramRef
	for rows.Next() {
		var ref ProgramRef
		if err := rows.Scan(&ref.Servicer, &ref.Program); err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ParameterAcrossPrograms returns column's value for every program,
// optionally restricted to a servicer and to a set of program names.
func ParameterAcrossPrograms(db *gorm.DB, column, servicer string, programs []string) ([]ProgramValue, error) {
	if err := requireColumn(db, column); err != nil {
		return nil, err
	}

	query := "SELECT " + quoteIdent(ServicerColumn) + ", " + quoteIdent(ProgramColumn) + ", " + quoteIdent(column) +
		" FROM " + quoteIdent(ProgramsTable) + " WHERE 1 = 1"
	var args []any
	if servicer != "" {
		query += " AND " + quoteIdent(ServicerColumn) + " = ? COLLATE NOCASE"
		args = append(args, servicer)
	}
	if len(programs) > 0 {
		query += " AND " + quoteIdent(ProgramColumn) + " IN ?"
		args = append(args, programs)
	}
	query += " ORDER BY " + quoteIdent(ServicerColumn) + ", " + quoteIdent(ProgramColumn)

	rows, err := db.Raw(query, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("query %s across programs: %w", column, err)
	}
	defer rows.Close()

	var values []ProgramValue
	for rows.Next() {
		var pv ProgramValue
		var value sql.NullString
		if err := rows.Scan(&pv.Servicer, &pv.Program, &value); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		pv.Value = strings.TrimSpace(value.String)
		values = append(values, pv)
	}
	return values, rows.Err()
}

// GetProgram loads one program. An empty servicer matches any servicer.
// Names compare case-insensitively.
func GetProgram(db *gorm.DB, servicer, program string) (*Program, error) {
	programs, err := queryPrograms(db, servicer, []string{program})
	if err != nil {
		return nil, err
	}
	if len(programs) == 0 {
		if servicer == "" {
			return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, program)
		}
		return nil, fmt.Errorf("%w: %s (%s)", ErrProgramNotFound, program, servicer)
	}
	return &programs[0], nil
}

// ListProgramDetails loads full program rows, optionally for one servicer
// and a set of program names.
func ListProgramDetails(db *gorm.DB, servicer string, programs []string) ([]Program, error) {
	return queryPrograms(db, servicer, programs)
}

// ProgramValueOf returns one column of one program.
func ProgramValueOf(db *gorm.DB, servicer, program, column string) (string, error) {
	if err := requireColumn(db, column); err != nil {
		return "", err
	}
	p, err := GetProgram(db, servicer, program)
	if err != nil {
		return "", err
	}
	return p.Value(column), nil
}

func queryPrograms(db *gorm.DB, servicer string, programs []string) ([]Program, error) {
	query := "SELECT * FROM " + quoteIdent(ProgramsTable) + " WHERE 1 = 1"
	var args []any
	if servicer != "" {
		query += " AND " + quoteIdent(ServicerColumn) + " = ? COLLATE NOCASE"
		args = append(args, servicer)
	}
	if len(programs) == 1 {
		query += " AND " + quoteIdent(ProgramColumn) + " = ? COLLATE NOCASE"
		args = append(args, programs[0])
	} else if len(programs) > 1 {
		query += " AND " + quoteIdent(ProgramColumn) + " IN ?"
		args = append(args, programs)
	}
	query += " ORDER BY " + quoteIdent(ServicerColumn) + ", " + quoteIdent(ProgramColumn)

	rows, err := db.Raw(query, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("query programs: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read program columns: %w", err)
	}

	var out []Program
	for rows.Next() {
		raw := make([]sql.NullString, len(columns))
		dest := make([]any, len(columns))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}

		p := Program{Attributes: make(map[string]string)}
		for i, c := range columns {
			value := strings.TrimSpace(raw[i].String)
			switch c {
			case ServicerColumn:
				p.Servicer = value
			case ProgramColumn:
				p.Program = value
			default:
				p.Columns = append(p.Columns, c)
				if value != "" {
					p.Attributes[c] = value
				}
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
