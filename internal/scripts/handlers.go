package scripts

import (
	"context"
	"fmt"
	"strings"

	"github.com/pysugar/loanpilot/internal/db"
	"gorm.io/gorm"
)

const notSpecified = "Not specified"

var separator = strings.Repeat("=", 80)

func displayName(database *gorm.DB, column string) string {
	if p, err := db.GetParameter(database, column); err == nil && p.DisplayName != "" {
		return p.DisplayName
	}
	return column
}

func servicerLabel(servicer string) string {
	if servicer == "" {
		return "All servicers"
	}
	return servicer
}

func orNotSpecified(value string) string {
	if strings.TrimSpace(value) == "" {
		return notSpecified
	}
	return value
}

func requireParam(params Params, key string) (string, error) {
	value := params.String(key)
	if value == "" {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return value, nil
}

func findParamAcrossPrograms(_ context.Context, env *Env, params Params) error {
	column, err := requireParam(params, ParamName)
	if err != nil {
		return err
	}
	servicer := params.String(ParamServicer)
	selected := params.Strings(ParamSelectedPrograms)

	values, err := db.ParameterAcrossPrograms(env.DB, column, servicer, selected)
	if err != nil {
		return err
	}

	env.Printf("PARAMETER: %s (%s)\n", displayName(env.DB, column), column)
	env.Printf("SERVICER: %s\n", servicerLabel(servicer))
	if len(selected) > 0 {
		env.Printf("SELECTED PROGRAMS: %s\n", strings.Join(selected, ", "))
	}
	env.Println(separator)
	if len(values) == 0 {
		env.Println("No programs found.")
		return ErrEarlyExit
	}
	for _, v := range values {
		if servicer == "" {
			env.Printf("%s (%s): %s\n", v.Program, v.Servicer, orNotSpecified(v.Value))
		} else {
			env.Printf("%s: %s\n", v.Program, orNotSpecified(v.Value))
		}
	}
	env.Println(separator)
	env.Printf("Total: %d programs\n", len(values))
	return nil
}

func showProgramParameters(_ context.Context, env *Env, params Params) error {
	name, err := requireParam(params, ParamProgram)
	if err != nil {
		return err
	}
	program, err := db.GetProgram(env.DB, params.String(ParamServicer), name)
	if err != nil {
		return err
	}
	names, err := db.DisplayNames(env.DB)
	if err != nil {
		return err
	}
	label := func(column string) string {
		if n := names[column]; n != "" {
			return n
		}
		return column
	}

	env.Printf("ALL PARAMETERS AND VALUES FOR: %s (%s)\n", program.Program, program.Servicer)
	env.Println(separator)
	count := 0
	if summary := program.Value(ParamSummary); summary != "" {
		env.Printf("%s: %s\n", label(ParamSummary), summary)
		count++
	}
	for _, column := range program.Columns {
		value := program.Value(column)
		if column == ParamSummary || value == "" {
			continue
		}
		env.Printf("%s: %s\n", label(column), value)
		count++
	}
	env.Println(separator)
	env.Printf("Total: %d parameters\n", count)
	return nil
}

func showServicerPrograms(_ context.Context, env *Env, params Params) error {
	servicer := params.String(ParamServicer)
	refs, err := db.ListPrograms(env.DB, servicer)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		env.Printf("No programs found for servicer %s\n", servicerLabel(servicer))
		return ErrEarlyExit
	}

	current := ""
	index := 0
	for _, ref := range refs {
		if ref.Servicer != current {
			if current != "" {
				env.Println()
			}
			current = ref.Servicer
			index = 0
			env.Printf("%s PROGRAMS:\n", strings.ToUpper(ref.Servicer))
		}
		index++
		env.Printf("%d. %s\n", index, ref.Program)
	}
	env.Printf("Total: %d programs\n", len(refs))
	return nil
}

func getProgramParameter(_ context.Context, env *Env, params Params) error {
	name, err := requireParam(params, ParamProgram)
	if err != nil {
		return err
	}
	column, err := requireParam(params, ParamName)
	if err != nil {
		return err
	}
	program, err := db.GetProgram(env.DB, params.String(ParamServicer), name)
	if err != nil {
		return err
	}
	value, err := db.ProgramValueOf(env.DB, program.Servicer, program.Program, column)
	if err != nil {
		return err
	}

	env.Printf("PARAMETER: %s (%s)\n", displayName(env.DB, column), column)
	env.Printf("PROGRAM: %s (%s)\n", program.Program, program.Servicer)
	env.Printf("VALUE: %s\n", orNotSpecified(value))
	return nil
}
