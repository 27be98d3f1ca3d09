// Package harness runs question scenarios against the engine and checks the
// outcome: status, compiled statements, rendered text and missing filters.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: drought_1980
//	description: "Yearly drought count and cost"
//	domain: billion_dollar        # or "auto" (default)
//	question: "How many droughts occurred in 1980?"
//	expect:
//	  status: answered
//	  statements:
//	    - SELECT Year, "Drought Count", "Drought Cost" FROM disaster_records WHERE Year = 1980 ORDER BY Year ASC LIMIT 20
//	  text_contains:
//	    - "$41.2 billion"
//
// Unknown fields are rejected so typos surface as load errors.
//
// # Expectations
//
//   - status: answered, no_data, insufficient_information, missing_filters or rejected
//   - statements: the exact compiled statements, in plan order
//   - statement_count: the number of compiled statements
//   - text_contains: substrings of the rendered reply
//   - missing: required kinds reported as missing (METRIC, LOCATION, ...)
//
// # Determinism
//
// Every run uses a fixed question ID and a fresh sequence, and the plain
// renderer, so snapshots compare byte for byte. Snapshots are canonical JSON
// (see ir.MarshalCanonical) and live next to the scenarios in golden/, or in
// testdata/golden for go test via goldie.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/drought_1980.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario, harness.Options{Registry: reg, Source: src})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, e := range result.Errors {
//	    log.Println(e)
//	}
package harness
