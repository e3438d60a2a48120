package buildtypes

import "strings"

// ExtractArgumentGroup extracts the group of arguments following the
// delimiting option from args. The group ends at a bare "--" or at the
// end of the arguments. An isolated run of three or more hyphens inside
// the group is reduced by one hyphen, so "---" passes a literal "--"
// through. Multiple delimiter occurrences are combined in order.
//
//	ExtractArgumentGroup([]string{"foo", "--args", "bar", "--baz"}, "--args")
//	  => ([]string{"foo"}, []string{"bar", "--baz"})
func ExtractArgumentGroup(args []string, delimiter string) (remaining, extracted []string) {
	remaining = make([]string, 0, len(args))
	extracted = make([]string, 0)
	i := 0
	for i < len(args) {
		if args[i] != delimiter {
			remaining = append(remaining, args[i])
			i++
			continue
		}
		i++ // consume the delimiter
		for i < len(args) {
			token := args[i]
			i++
			if token == "--" {
				break
			}
			if len(token) >= 3 && strings.Count(token, "-") == len(token) {
				token = token[1:]
			}
			extracted = append(extracted, token)
		}
	}
	return remaining, extracted
}

// stringsFromExtras converts a preprocessor extra back to a string slice
func stringsFromExtras(extras map[string]interface{}, key string) []string {
	if extras == nil {
		return nil
	}
	if v, ok := extras[key].([]string); ok {
		return v
	}
	return nil
}
