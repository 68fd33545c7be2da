package testutil

import (
	"bufio"
	"encoding/json"
	"fmt"
	"github.com/APTrust/fixity/models"
	"os"
	"strings"
)

// FindSummaryInLog returns the last WorkSummary in a worker's JSON
// log whose job and key match. Jobs that were retried appear more
// than once, and we only want the last known state.
func FindSummaryInLog(pathToLogFile, job, key string) (*models.WorkSummary, error) {
	file, err := os.Open(pathToLogFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var found *models.WorkSummary
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		summary := &models.WorkSummary{}
		if err := json.Unmarshal([]byte(line), summary); err != nil {
			continue
		}
		if summary.Job == job && summary.Key == key {
			found = summary
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("No %s summary for %s in %s", job, key, pathToLogFile)
	}
	return found, nil
}
