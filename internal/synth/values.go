package synth

import (
	"fmt"
	"math/rand"
	"regexp/syntax"
	"strings"

	"github.com/google/uuid"

	"apiconform/internal/model"
)

const (
	defaultStringMin = 1
	defaultStringMax = 20
	stringMaxCap     = 50
)

var alphanumeric = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

// generateValue produces a value matching schema, per spec.md §4.2
// "Schema-driven value generation". depth guards against pathological
// recursive $ref cycles the catalog failed to break.
func generateValue(rng *rand.Rand, schema *model.Schema, depth int) interface{} {
	if schema == nil || depth > 8 {
		return randomAlphaNumeric(rng, defaultStringMin, defaultStringMax)
	}
	switch schema.Kind {
	case model.KindString:
		return generateString(rng, schema)
	case model.KindInteger:
		return generateInteger(rng, schema)
	case model.KindNumber:
		return generateNumber(rng, schema)
	case model.KindBoolean:
		return rng.Intn(2) == 1
	case model.KindArray:
		return generateArray(rng, schema, depth)
	case model.KindObject:
		return generateObject(rng, schema, depth)
	default:
		return randomAlphaNumeric(rng, defaultStringMin, defaultStringMax)
	}
}

func generateString(rng *rand.Rand, schema *model.Schema) string {
	if len(schema.Enum) > 0 {
		idx := rng.Intn(len(schema.Enum))
		return fmt.Sprint(schema.Enum[idx])
	}
	if v, ok := wellFormedExample(rng, schema.Format); ok {
		return v
	}
	if schema.Pattern != "" {
		if v, ok := fromPattern(rng, schema.Pattern); ok {
			return v
		}
	}
	min := defaultStringMin
	if schema.MinLength != nil && *schema.MinLength > min {
		min = *schema.MinLength
	}
	max := defaultStringMax
	if schema.MaxLength != nil {
		max = *schema.MaxLength
	}
	if max > stringMaxCap {
		max = stringMaxCap
	}
	if max < min {
		max = min
	}
	return randomAlphaNumeric(rng, min, max)
}

func wellFormedExample(rng *rand.Rand, format string) (string, bool) {
	switch format {
	case "email":
		return fmt.Sprintf("user%d@example.com", rng.Intn(100000)), true
	case "date":
		return fmt.Sprintf("2024-%02d-%02d", rng.Intn(12)+1, rng.Intn(28)+1), true
	case "date-time":
		return fmt.Sprintf("2024-%02d-%02dT%02d:%02d:%02dZ", rng.Intn(12)+1, rng.Intn(28)+1, rng.Intn(24), rng.Intn(60), rng.Intn(60)), true
	case "uuid":
		return uuidFromRand(rng).String(), true
	case "uri":
		return fmt.Sprintf("https://example.com/%d", rng.Intn(100000)), true
	case "password":
		return randomAlphaNumeric(rng, 8, 16), true
	default:
		return "", false
	}
}

// uuidFromRand derives a deterministic UUID from the seeded generator so
// two runs with the same seed produce the same identifiers (spec.md §4.2
// "Determinism").
func uuidFromRand(rng *rand.Rand) uuid.UUID {
	var u uuid.UUID
	for i := range u {
		u[i] = byte(rng.Intn(256))
	}
	u[6] = (u[6] & 0x0f) | 0x40
	u[8] = (u[8] & 0x3f) | 0x80
	return u
}

// fromPattern makes a best-effort attempt to produce a string matching a
// regex pattern by walking its parsed syntax tree and picking one literal
// branch per alternation/concatenation; falls back to random on anything
// it cannot approximate (spec.md §4.2 "fall back to random if the
// approximation fails").
func fromPattern(rng *rand.Rand, pattern string) (string, bool) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return "", false
	}
	var b strings.Builder
	if !approximate(rng, re, &b, 0) {
		return "", false
	}
	return b.String(), true
}

func approximate(rng *rand.Rand, re *syntax.Regexp, b *strings.Builder, depth int) bool {
	if depth > 16 {
		return false
	}
	switch re.Op {
	case syntax.OpLiteral:
		for _, r := range re.Rune {
			b.WriteRune(r)
		}
		return true
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if !approximate(rng, sub, b, depth+1) {
				return false
			}
		}
		return true
	case syntax.OpCapture:
		if len(re.Sub) != 1 {
			return false
		}
		return approximate(rng, re.Sub[0], b, depth+1)
	case syntax.OpAlternate:
		if len(re.Sub) == 0 {
			return false
		}
		return approximate(rng, re.Sub[rng.Intn(len(re.Sub))], b, depth+1)
	case syntax.OpStar, syntax.OpPlus, syntax.OpRepeat:
		min := 1
		if re.Op == syntax.OpStar {
			min = 0
		}
		if re.Op == syntax.OpRepeat {
			min = re.Min
		}
		count := min + rng.Intn(3)
		if len(re.Sub) != 1 {
			return false
		}
		for i := 0; i < count; i++ {
			if !approximate(rng, re.Sub[0], b, depth+1) {
				return false
			}
		}
		return true
	case syntax.OpCharClass:
		if len(re.Rune) < 2 {
			return false
		}
		lo, hi := re.Rune[0], re.Rune[1]
		if hi < lo {
			return false
		}
		span := hi - lo + 1
		b.WriteRune(lo + rng.Int31n(span))
		return true
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		b.WriteRune(alphanumeric[rng.Intn(len(alphanumeric))])
		return true
	default:
		return false
	}
}

func generateInteger(rng *rand.Rand, schema *model.Schema) int64 {
	min := int64(1)
	max := int64(1000)
	if schema.Minimum != nil {
		min = int64(*schema.Minimum)
	}
	if schema.Maximum != nil {
		max = int64(*schema.Maximum)
	}
	if max < min {
		max = min
	}
	return min + rng.Int63n(max-min+1)
}

func generateNumber(rng *rand.Rand, schema *model.Schema) float64 {
	min := 0.0
	max := 1000.0
	if schema.Minimum != nil {
		min = *schema.Minimum
	}
	if schema.Maximum != nil {
		max = *schema.Maximum
	}
	if max < min {
		max = min
	}
	return min + rng.Float64()*(max-min)
}

func generateArray(rng *rand.Rand, schema *model.Schema, depth int) []interface{} {
	n := 1 + rng.Intn(3)
	out := make([]interface{}, n)
	for i := range out {
		out[i] = generateValue(rng, schema.Items, depth+1)
	}
	return out
}

const optionalFieldProbability = 0.7

func generateObject(rng *rand.Rand, schema *model.Schema, depth int) map[string]interface{} {
	out := map[string]interface{}{}
	for name, propSchema := range schema.Properties {
		if schema.IsRequiredField(name) || rng.Float64() < optionalFieldProbability {
			out[name] = generateValue(rng, propSchema, depth+1)
		}
	}
	return out
}

func randomAlphaNumeric(rng *rand.Rand, min, max int) string {
	length := min
	if max > min {
		length = min + rng.Intn(max-min+1)
	}
	b := make([]rune, length)
	for i := range b {
		b[i] = alphanumeric[rng.Intn(len(alphanumeric))]
	}
	return string(b)
}
