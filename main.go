package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/steamforge/mobileauth/steamid"
	"github.com/steamforge/mobileauth/steamsession"
	"github.com/steamforge/mobileauth/steamtime"
	"github.com/steamforge/mobileauth/steamtotp"
)

func main() {
	steamID64, err := strconv.ParseUint(os.Getenv("STEAM_ID64"), 10, 64)
	if err != nil {
		log.Fatalf("parse STEAM_ID64: %v", err)
	}
	nonce := os.Getenv("STEAM_WEBAPI_NONCE")
	sharedSecret := os.Getenv("STEAM_SHARED_SECRET")

	ctx := context.Background()
	oracle := steamtime.New()

	code, err := steamtotp.GenerateAuthCode(sharedSecret, oracle.SteamTime(ctx))
	if err != nil {
		log.Fatalf("generate auth code: %v", err)
	}
	log.Printf("current login code: %s", code)

	session, err := steamsession.New()
	if err != nil {
		log.Fatalf("new session: %v", err)
	}

	err = session.Login(ctx, steamsession.LoginOptions{
		SteamID:         steamid.FromSteamID64(steamID64),
		Universe:        steamid.EUniversePublic,
		WebAPIUserNonce: nonce,
	})
	if err != nil {
		log.Fatalf("login: %v", err)
	}

	log.Printf("session established for %s", session.SteamID.String())
}
