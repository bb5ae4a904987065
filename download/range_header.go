package download

import "fmt"

// BuildRangeHeader constructs a Range header value for resuming at the
// given byte offset: BuildRangeHeader(1024) == "bytes=1024-".
func BuildRangeHeader(resumeFrom int64) string {
	if resumeFrom < 0 {
		resumeFrom = 0
	}
	return fmt.Sprintf("bytes=%d-", resumeFrom)
}

// ParseContentRange parses a Content-Range response header of the form
// "bytes start-end/total". total is -1 when the server reports "*".
func ParseContentRange(header string) (start, end, total int64, err error) {
	if header == "" {
		return 0, 0, 0, fmt.Errorf("empty Content-Range header")
	}

	var totalStr string
	n, scanErr := fmt.Sscanf(header, "bytes %d-%d/%s", &start, &end, &totalStr)
	if scanErr != nil || n < 2 {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %q", header)
	}

	if totalStr == "*" {
		total = -1
	} else if _, parseErr := fmt.Sscanf(totalStr, "%d", &total); parseErr != nil {
		return 0, 0, 0, fmt.Errorf("invalid total in Content-Range: %q", totalStr)
	}
	return start, end, total, nil
}
