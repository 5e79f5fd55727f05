package main

import (
	"care-chat/auth"
	"care-chat/domain"
	"flag"
	"fmt"
	"log"
	"os"
	"time"
)

// token prints a signed JWT for a participant, for local testing and operators.
func main() {
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 signing secret")
	id := flag.String("id", "", "Participant id")
	role := flag.String("role", string(domain.RoleUser), "Participant role (user|doctor)")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if *secret == "" || *id == "" {
		flag.Usage()
		os.Exit(2)
	}

	token, err := auth.GenerateToken([]byte(*secret), *id, domain.Role(*role), *ttl)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(token)
}
