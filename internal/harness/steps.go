package harness

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/store"
)

type arity struct{ min, max int }

// opArity lists every supported op with its argument count.
var opArity = map[string]arity{
	"set_tables":             {1, 1},
	"set_table":              {2, 2},
	"set_row":                {3, 3},
	"add_row":                {2, 2},
	"set_partial_row":        {3, 3},
	"set_cell":               {4, 4},
	"set_values":             {1, 1},
	"set_partial_values":     {1, 1},
	"set_value":              {2, 2},
	"del_tables":             {0, 0},
	"del_table":              {1, 1},
	"del_row":                {2, 2},
	"del_cell":               {3, 4},
	"del_values":             {0, 0},
	"del_value":              {1, 1},
	"set_tables_json":        {1, 1},
	"set_values_json":        {1, 1},
	"set_json":               {1, 1},
	"set_tables_schema_json": {1, 1},
	"set_values_schema_json": {1, 1},
	"del_tables_schema":      {0, 0},
	"del_values_schema":      {0, 0},
	"del_listener":           {1, 1},
	"call_listener":          {1, 1},
	"start_transaction":      {0, 0},
	"finish_transaction":     {0, 1},
}

// execute performs one step on s. Listener writes pass the store they
// were called with.
func (h *Harness) execute(s *store.Store, step Step) error {
	if len(step.Transaction) > 0 {
		return h.executeTransaction(s, step)
	}

	args := make([]any, len(step.Args))
	for i := range step.Args {
		v, err := fromNode(&step.Args[i])
		if err != nil {
			return fmt.Errorf("%s: args[%d]: %w", step.Op, i, err)
		}
		args[i] = v
	}

	switch step.Op {
	case "set_tables":
		s.SetTables(args[0])
	case "set_table":
		s.SetTable(args[0], args[1])
	case "set_row":
		s.SetRow(args[0], args[1], args[2])
	case "add_row":
		return h.addRow(s, step, args)
	case "set_partial_row":
		s.SetPartialRow(args[0], args[1], args[2])
	case "set_cell":
		s.SetCell(args[0], args[1], args[2], args[3])
	case "set_values":
		s.SetValues(args[0])
	case "set_partial_values":
		s.SetPartialValues(args[0])
	case "set_value":
		s.SetValue(args[0], args[1])
	case "del_tables":
		s.DelTables()
	case "del_table":
		s.DelTable(args[0])
	case "del_row":
		s.DelRow(args[0], args[1])
	case "del_cell":
		force := false
		if len(args) == 4 {
			b, ok := args[3].(bool)
			if !ok {
				return fmt.Errorf("del_cell: force must be a boolean, got %T", args[3])
			}
			force = b
		}
		s.DelCell(args[0], args[1], args[2], force)
	case "del_values":
		s.DelValues()
	case "del_value":
		s.DelValue(args[0])
	case "set_tables_json":
		return h.setText(step, args[0], s.SetTablesJSON)
	case "set_values_json":
		return h.setText(step, args[0], s.SetValuesJSON)
	case "set_json":
		return h.setText(step, args[0], s.SetJSON)
	case "set_tables_schema_json":
		return h.setText(step, args[0], s.SetTablesSchemaJSON)
	case "set_values_schema_json":
		return h.setText(step, args[0], s.SetValuesSchemaJSON)
	case "del_tables_schema":
		s.DelTablesSchema()
	case "del_values_schema":
		s.DelValuesSchema()
	case "del_listener":
		id, err := h.listenerID(args[0])
		if err != nil {
			return fmt.Errorf("del_listener: %w", err)
		}
		s.DelListener(id)
	case "call_listener":
		id, err := h.listenerID(args[0])
		if err != nil {
			return fmt.Errorf("call_listener: %w", err)
		}
		s.CallListener(id)
	case "start_transaction":
		s.StartTransaction()
	case "finish_transaction":
		var rollback store.RollbackFunc
		if len(args) == 1 {
			b, ok := args[0].(bool)
			if !ok {
				return fmt.Errorf("finish_transaction: rollback must be a boolean, got %T", args[0])
			}
			if b {
				rollback = rollbackAll
			}
		}
		s.FinishTransaction(rollback)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

func (h *Harness) executeTransaction(s *store.Store, step Step) error {
	var rollback store.RollbackFunc
	if step.Rollback {
		rollback = rollbackAll
	}
	var err error
	s.Transaction(func() {
		for i, nested := range step.Transaction {
			if err = h.execute(s, nested); err != nil {
				err = fmt.Errorf("transaction[%d]: %w", i, err)
				return
			}
		}
	}, rollback)
	return err
}

func rollbackAll(store.Changes) bool {
	return true
}

// addRow checks add_row expectations. A write deferred from a plain
// listener has no row id yet and is not checked.
func (h *Harness) addRow(s *store.Store, step Step, args []any) error {
	rowID, ok := s.AddRow(args[0], args[1])
	if s.WritesDeferred() {
		return nil
	}
	switch {
	case step.ExpectError && ok:
		h.result.AddError(fmt.Sprintf("add_row: expected failure, got row id %q", rowID))
	case !step.ExpectError && !ok:
		h.result.AddError("add_row: expected a row id, got failure")
	case step.Expect != "" && rowID != step.Expect:
		h.result.AddError(fmt.Sprintf("add_row: expected row id %q, got %q", step.Expect, rowID))
	}
	return nil
}

// setText runs a JSON text op. Parse failures are expectations, not
// scenario errors.
func (h *Harness) setText(step Step, arg any, set func(string) error) error {
	text, ok := arg.(string)
	if !ok {
		return fmt.Errorf("%s: text must be a string, got %T", step.Op, arg)
	}
	err := set(text)
	switch {
	case step.ExpectError && err == nil:
		h.result.AddError(fmt.Sprintf("%s: expected an error", step.Op))
	case !step.ExpectError && err != nil:
		h.result.AddError(fmt.Sprintf("%s: %v", step.Op, err))
	}
	return nil
}

// fromNode converts a YAML node to the shapes the store accepts. Mappings
// become ordered objects so rows and cells keep the order they are written
// in.
func fromNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.MappingNode:
		obj := ir.NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := fromNode(n.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", n.Content[i].Value, err)
			}
			obj.Set(n.Content[i].Value, v)
		}
		return obj, nil
	case yaml.SequenceNode:
		out := make([]any, len(n.Content))
		for i, elem := range n.Content {
			v, err := fromNode(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
}
