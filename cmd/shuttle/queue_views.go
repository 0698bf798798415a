package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"shuttle/internal/api"
)

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func buildQueueListRows(tasks []api.QueueTask) [][]string {
	if len(tasks) == 0 {
		return nil
	}
	sorted := api.SortQueueTasksNewestFirst(tasks)

	rows := make([][]string, 0, len(sorted))
	for _, task := range sorted {
		client := strings.TrimSpace(task.ClientName)
		if client == "" {
			client = strings.TrimSpace(task.ClientID)
		}
		if client == "" {
			client = "Unknown"
		}
		remote := strings.TrimSpace(task.RemotePath)
		if remote == "" {
			remote = filepath.Base(task.SourcePath)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", task.ID),
			client,
			remote,
			formatStatusLabel(task.Status),
			formatProgress(task),
			humanize.IBytes(uint64(task.Size)),
			formatDisplayTime(task.CreatedAt),
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatProgress(task api.QueueTask) string {
	if task.Progress.BytesTotal <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", task.Progress.Percent)
}

func formatDisplayTime(value string) string {
	t := api.ParseQueueTime(value)
	if t.IsZero() {
		return strings.TrimSpace(value)
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatOptional(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}
