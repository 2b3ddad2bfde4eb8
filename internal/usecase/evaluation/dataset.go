package evaluation

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Topic is a patient profile with known relevant trials.
type Topic struct {
	ID      string `json:"topic_id"`
	Profile string `json:"profile"`
}

// Qrels maps a topic id to the set of relevant NCT ids.
type Qrels map[string]map[string]struct{}

// Relevant returns the relevant NCT ids for a topic.
func (q Qrels) Relevant(topicID string) map[string]struct{} {
	return q[topicID]
}

// LoadTopics reads JSON lines of {"topic_id", "profile"}. Numeric topic ids
// are accepted. Blank lines are skipped.
func LoadTopics(r io.Reader) ([]Topic, error) {
	var topics []Topic
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var raw struct {
			TopicID json.RawMessage `json:"topic_id"`
			Profile string          `json:"profile"`
		}
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, fmt.Errorf("topics line %d: %w", line, err)
		}
		id := strings.Trim(strings.TrimSpace(string(raw.TopicID)), `"`)
		if id == "" || id == "null" {
			return nil, fmt.Errorf("topics line %d: missing topic_id", line)
		}
		if strings.TrimSpace(raw.Profile) == "" {
			return nil, fmt.Errorf("topics line %d: empty profile", line)
		}
		topics = append(topics, Topic{ID: id, Profile: raw.Profile})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read topics: %w", err)
	}
	return topics, nil
}

// LoadQrels reads CSV rows of topic_id,NCT_id[,label]. A header row is
// skipped; rows labelled 0 are not relevant.
func LoadQrels(r io.Reader) (Qrels, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	q := make(Qrels)
	row := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read qrels: %w", err)
		}
		row++
		if len(rec) < 2 {
			return nil, fmt.Errorf("qrels row %d: want at least 2 columns, got %d", row, len(rec))
		}
		topicID, nctID := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if row == 1 && strings.EqualFold(topicID, "topic_id") {
			continue
		}
		if len(rec) > 2 && strings.TrimSpace(rec[2]) == "0" {
			continue
		}
		if q[topicID] == nil {
			q[topicID] = make(map[string]struct{})
		}
		q[topicID][nctID] = struct{}{}
	}
	return q, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
