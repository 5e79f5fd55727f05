package main

import (
	"care-chat/codec"
	"care-chat/domain"
	"care-chat/repositories"
	"care-chat/services"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// inspect prints the decrypted history of one conversation, newest first.
func main() {
	dbPath := flag.String("db", os.Getenv("BADGER_FILEPATH"), "Path to badger DB")
	key := flag.String("key", os.Getenv("ENCRYPTION_KEY"), "Message encryption key")
	first := flag.String("a", "", "First participant id")
	second := flag.String("b", "", "Second participant id")
	limit := flag.Int("limit", 50, "Maximum number of messages, 0 for all")
	flag.Parse()

	if *dbPath == "" || *first == "" || *second == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger := logs.GetLoggerFromLevel(slog.LevelWarn)
	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	messageCodec, err := codec.New(*key, logger, nil)
	if err != nil {
		log.Fatal(err)
	}
	store := services.NewMessageStore(repositories.NewMessageRepository(db, logger), messageCodec, logger, 1, 0)

	conversation := domain.NewConversationKey(*first, *second)
	history, err := store.History(context.Background(), conversation, *limit)
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Timestamp", "Message ID", "Sender", "Role", "Receiver", "Read", "Text"})
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

	for _, message := range history {
		// First 8 characters are enough to tell messages apart on screen
		displayID := message.ID.String()[:8]
		table.Append([]string{
			message.Timestamp.Format(time.RFC3339),
			displayID,
			message.SenderID,
			string(message.SenderRole),
			message.ReceiverID,
			strconv.FormatBool(message.Read),
			message.Text,
		})
	}
	table.Render()
	fmt.Printf("\n%d message(s) in %s\n", len(history), conversation)
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
