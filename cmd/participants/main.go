package main

import (
	"care-chat/domain"
	"care-chat/repositories"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// participants maintains the directory used to validate conversation counterparts.
//
//	participants -db ./data add -id D1 -role doctor -name "Dr One"
//	participants -db ./data list
func main() {
	dbPath := flag.String("db", os.Getenv("BADGER_FILEPATH"), "Path to badger DB")
	flag.Parse()
	if *dbPath == "" || flag.NArg() == 0 {
		usage()
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()
	repository := repositories.NewParticipantRepository(db)

	switch flag.Arg(0) {
	case "add":
		err = add(repository, flag.Args()[1:])
	case "list":
		err = list(repository)
	default:
		usage()
	}
	if err != nil {
		log.Fatal(err)
	}
}

func add(repository repositories.IParticipantRepository, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	id := fs.String("id", "", "Participant id")
	role := fs.String("role", string(domain.RoleUser), "Participant role (user|doctor)")
	name := fs.String("name", "", "Display name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	participant := domain.Participant{ID: *id, Role: domain.Role(*role), Name: *name, CreatedAt: time.Now().UTC()}
	if err := repository.CreateParticipant(participant); err != nil {
		return err
	}
	fmt.Printf("Participant %s (%s) saved\n", participant.ID, participant.Role)
	return nil
}

func list(repository repositories.IParticipantRepository) error {
	participants, err := repository.ListParticipants()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Role", "Name", "Created"})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, participant := range participants {
		table.Append([]string{
			participant.ID,
			string(participant.Role),
			participant.Name,
			participant.CreatedAt.Format(time.RFC3339),
		})
	}
	table.Render()
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: participants -db PATH add -id ID -role user|doctor [-name NAME]")
	fmt.Fprintln(os.Stderr, "       participants -db PATH list")
	os.Exit(2)
}
