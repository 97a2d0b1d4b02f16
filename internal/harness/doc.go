// Package harness provides conformance testing for tabstore listener
// semantics.
//
// The harness drives a fresh store through the steps of a YAML scenario
// with listeners attached, records every listener firing, and validates the
// resulting trace and content.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema: pets.cue              # optional, relative to the scenario
//	tables_schema:                # optional inline schema
//	  pets:
//	    species: {type: string, default: dog}
//	listeners:
//	  - id: species
//	    category: cell
//	    path: [pets, null, species] # null is the wildcard
//	  - id: stamp
//	    category: row
//	    path: [pets, null]
//	    mutator: true
//	    write: {op: set_value, args: [touched, true]}
//	steps:
//	  - op: set_row
//	    args: [pets, fido, {species: dog}]
//	  - transaction:
//	      - op: set_cell
//	        args: [pets, fido, species, cat]
//	    rollback: true
//	assertions:
//	  - type: fired
//	    listener: species
//	    ids: [pets, fido, species]
//	  - type: cell
//	    table: pets
//	    row: fido
//	    cell: species
//	    expect: dog
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - content: Final tables and values equal the expected content
//   - cell, value: One cell or value equals expect (null: absent)
//   - json: GetJSON() equals the expected text
//   - fired, not_fired, fire_count: Listener firing counts
//   - trace_order: Listeners first fire in the given order
//
// # Deterministic Testing
//
// Stores come from a registry with a fixed id generator and firings are
// numbered by a resettable recorder, so the same scenario always produces
// the same trace. Traces are compared against golden files with goldie.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/cascade.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
