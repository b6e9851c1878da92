// internal/prompt/builder.go
package prompt

import (
	"fmt"
	"strings"

	"github.com/solatis/rulesmith/internal/schema"
	"github.com/solatis/rulesmith/internal/types"
)

/*
 * Instruction construction.
 *
 * Build produces the user-role instruction for one generation attempt. The
 * output is a pure function of (requirement, modification, registry) so the
 * same inputs always produce byte-identical prompts.
 *
 * Layout:
 *   1. Role and task preamble
 *   2. Hard constraints on column names and connectors
 *   3. Registry listing, one line per source in load order
 *   4. Requirement quoted verbatim, then the modification if any
 *   5. Closed output schema with every allowed enumeration value
 *   6. JSON-only instruction
 *
 * Both requirement and modification pass through NormalizeText before they
 * are embedded; the caller does not need to normalize them first.
 */

// SystemPrompt is the fixed system-role description sent with every request.
const SystemPrompt = "You are a financial rule generation expert that creates precise JSON rules based on data sources."

// Build returns the instruction string for requirement and an optional
// modification (empty string means none).
// Returns types.ErrEmptyRequirement if requirement is blank after normalization.
func Build(requirement, modification string, reg *schema.Registry) (string, error) {
	requirement = NormalizeText(requirement)
	if requirement == "" {
		return "", types.ErrEmptyRequirement
	}
	modification = NormalizeText(modification)

	var b strings.Builder

	b.WriteString("You are a financial rule generation assistant.\n\n")
	b.WriteString("Your task is to help create precise logical eligibility rules based on the available data sources.\n\n")

	b.WriteString("IMPORTANT:\n")
	b.WriteString("- ONLY use the **exact** column names provided in the list of data sources below.\n")
	b.WriteString("- Do NOT invent or infer new column names.\n")
	b.WriteString("- Match every column name to the data source it belongs to.\n")
	b.WriteString("- Every element of a list except the last must carry a connector (\"AND\" or \"OR\"); the last element's connector must be null.\n\n")

	b.WriteString("Available data sources and columns:\n")
	for _, src := range reg.Sources() {
		cols, _ := reg.ColumnsOf(src)
		fmt.Fprintf(&b, "- %s: %s\n", src, strings.Join(cols, ", "))
	}

	b.WriteString("\nThe user has provided the following requirement:\n")
	b.WriteString("\"" + requirement + "\"\n")
	if modification != "" {
		fmt.Fprintf(&b, "\nUser requested the following modifications: %s\n", modification)
	}

	b.WriteString("\nNow analyze this requirement and:\n")
	b.WriteString("1. Identify which data sources are needed\n")
	b.WriteString("2. Choose ONLY valid column names from the corresponding source\n")
	b.WriteString("3. Construct a rule using this format:\n")
	b.WriteString(outputSchema())

	b.WriteString("\nNesting: a \"condition\" has no \"conditions\" key. A \"conditionGroup\" has a non-empty \"conditions\" list of conditions only; groups never nest.\n")
	b.WriteString("If any conditionGroup is present, put every condition inside a group.\n")
	b.WriteString("All `field` values **must match exactly** the column names listed above.\n\n")
	b.WriteString("Respond ONLY with a single valid JSON object. No explanation, no markdown. Just JSON.\n")

	return b.String(), nil
}

func outputSchema() string {
	return fmt.Sprintf(`{
    "rules": [
        {
            "id": "generated_id",
            "dataSource": "source_name",
            "field": "column_name_from_source",
            "eligibilityPeriod": %s,
            "function": %s,
            "operator": %s,
            "value": "comparison_value",
            "priority": null,
            "ruleType": "condition" or "conditionGroup",
            "connector": "AND" or "OR" or null,
            "conditions": [ /* for conditionGroup only */ ]
        }
    ]
}
`, quoteAll(types.EligibilityPeriods), quoteAll(types.Functions), quoteAll(types.Operators))
}

func quoteAll[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%q", string(v))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " or " + parts[len(parts)-1]
}
