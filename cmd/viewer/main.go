package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"convsync/domain"
	"convsync/repositories"
)

// Reads the local history cache without the engine running and renders the
// most recent entries, newest first.
func main() {
	dbPath := flag.String("db", "/tmp/convsync", "Path to badger DB")
	conv := flag.String("conv", "", "Conversation id to inspect")
	limit := flag.Int("limit", 50, "Maximum entries to display")
	flag.Parse()

	if *conv == "" {
		log.Fatal("Missing required -conv flag")
	}

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	repository := repositories.NewHistoryRepository(db, logs.GetLoggerFromString("warn"), limit)
	messages, _, err := repository.Recent(domain.ConversationID(*conv), nil)
	if err != nil {
		log.Fatal("Error while scanning history: ", err)
	}

	header := fmt.Sprintf("  ====== %s (%d cached) ======", *conv, len(messages))
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(header))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Timestamp", "Author", "Edited", "Text"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, m := range messages {
		// Truncate ids for readability
		displayID := m.ID
		if len(displayID) > 8 {
			displayID = displayID[:8]
		}

		edited := ""
		if m.Edited {
			edited = "yes"
		}

		table.Append([]string{
			displayID,
			m.At.Format("02 Jan 15:04:05"),
			m.Author,
			edited,
			m.Text,
		})
	}

	table.Render()
}

func openDB(path string) (*badger.DB, error) {
	// BypassLockGuard allows opening while the engine holds the lock
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		if strings.Contains(err.Error(), "Log truncate required") {
			// Open in write mode once to allow the truncate
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
