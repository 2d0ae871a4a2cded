package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
)

// CountFormatError marks a counter endpoint response or argument list that
// does not have the expected shape.
type CountFormatError struct {
	Reason string
}

func (e *CountFormatError) Error() string {
	return "count format: " + e.Reason
}

var allDigits = regexp.MustCompile(`^\d+$`)

// ClickCount resolves a posting's access counter. args is the literal
// argument list scraped from the _showDynClicks script call, e.g.
// `("wbnews", 1728834619, 45421)`.
//
// The returned value is decremented by one when above one: the crawler's
// own detail fetch increments the counter, and this compensates for exactly
// that one visit. A record fetched more than once is under-counted.
func (s *Site) ClickCount(ctx context.Context, args string) (int64, error) {
	params := strings.Split(strings.Trim(strings.TrimSpace(args), "();"), ", ")
	if len(params) < 3 {
		return 0, &CountFormatError{Reason: fmt.Sprintf("unexpected click argument list %q", args)}
	}

	owner := params[1]
	clickID := params[2]

	url := fmt.Sprintf("%s/system/resource/code/news/click/dynclicks.jsp?clickid=%s&owner=%s&clicktype=wbnews", s.baseURL, clickID, owner)

	body, err := s.client.Get(ctx, url)
	if err != nil {
		// Counter endpoints are best-effort: an unreachable counter is a
		// zero count, not a failed record.
		return 0, nil
	}

	text := strings.TrimSpace(string(body))
	if !allDigits.MatchString(text) {
		return 0, &CountFormatError{Reason: fmt.Sprintf("click count body %q is not numeric", text)}
	}

	num, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, &CountFormatError{Reason: fmt.Sprintf("click count body %q: %v", text, err)}
	}

	if num > 1 {
		num--
	}

	return num, nil
}

// DownloadCount resolves an attachment's download counter. args is the
// literal argument list scraped from the getClickTimes script call, e.g.
// `(6582534,1728834619,"wbnewsfile","attach")`.
func (s *Site) DownloadCount(ctx context.Context, args string) (int64, error) {
	params := strings.Split(strings.Trim(strings.TrimSpace(args), "();"), ",")
	if len(params) < 2 {
		return 0, &CountFormatError{Reason: fmt.Sprintf("unexpected download argument list %q", args)}
	}

	newsID := params[0]
	owner := params[1]

	url := fmt.Sprintf("%s/system/resource/code/news/click/clicktimes.jsp?wbnewsid=%s&owner=%s&type=wbnewsfile&randomid=nattach", s.baseURL, newsID, owner)

	body, err := s.client.Get(ctx, url)
	if err != nil {
		return 0, nil
	}

	var payload struct {
		ShowTimes json.Number `json:"wbshowtimes"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, &CountFormatError{Reason: fmt.Sprintf("download count payload: %v", err)}
	}

	num, err := payload.ShowTimes.Int64()
	if err != nil {
		return 0, &CountFormatError{Reason: fmt.Sprintf("wbshowtimes %q is not numeric", payload.ShowTimes.String())}
	}

	log.Printf("download count: %d", num)

	return num, nil
}
