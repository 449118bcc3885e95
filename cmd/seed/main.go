// Package main seeds a development database: one demo user with a funded
// wallet, a station with a few available bikes, and a fixed-slot template
// scheduled for tomorrow.
package main

import (
	"log"
	"time"

	"mebike/internal/config"
	"mebike/internal/models"
	"mebike/internal/repositories"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	config.LoadEnv()
	repositories.InitDB()
	db := repositories.DB

	email := config.GetEnv("SEED_EMAIL", "demo@mebike.local")
	password := config.GetEnv("SEED_PASSWORD", "demo-password")

	var existing models.User
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		log.Println("Seed user already exists")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	user := models.User{
		Email:    email,
		Password: string(hashed),
		FullName: "Demo Rider",
		Phone:    "+84000000000",
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("Failed to create seed user: %v", err)
	}

	wallet := models.Wallet{
		UserID:   user.ID,
		Currency: "VND",
		Status:   models.WalletStatusActive,
	}
	if err := db.Create(&wallet).Error; err != nil {
		log.Fatalf("Failed to create seed wallet: %v", err)
	}

	// Fund the demo wallet through the ledger so the balance has a matching
	// transaction row.
	bonusHash := "bonus:welcome:" + user.ID
	wallets := repositories.NewWalletRepository(db)
	if _, err := wallets.IncreaseBalance(repositories.IncreaseBalanceInput{
		UserID:      user.ID,
		Amount:      200000,
		Description: "Welcome bonus",
		Hash:        &bonusHash,
		Type:        models.TransactionTypeBonus,
	}); err != nil {
		log.Fatalf("Failed to credit welcome bonus: %v", err)
	}

	station := models.Station{Name: "District 1 Central", Address: "1 Nguyen Hue, Ho Chi Minh City"}
	if err := db.Create(&station).Error; err != nil {
		log.Fatalf("Failed to create seed station: %v", err)
	}

	for i := 0; i < 3; i++ {
		bike := models.Bike{
			ChipID:    config.GetEnv("SEED_CHIP_PREFIX", "CHIP") + "-" + time.Now().Format("150405") + "-" + string(rune('A'+i)),
			StationID: &station.ID,
			Status:    models.BikeStatusAvailable,
		}
		if err := db.Create(&bike).Error; err != nil {
			log.Fatalf("Failed to create seed bike: %v", err)
		}
	}

	slotStart := time.Date(2000, 1, 1, 8, 0, 0, 0, time.Local)
	template := models.FixedSlotTemplate{
		UserID:    user.ID,
		StationID: station.ID,
		SlotStart: slotStart,
		Status:    models.FixedSlotStatusActive,
	}
	if err := db.Create(&template).Error; err != nil {
		log.Fatalf("Failed to create fixed slot template: %v", err)
	}
	tomorrow := time.Now().AddDate(0, 0, 1)
	fixedSlots := repositories.NewFixedSlotRepository(db)
	if _, err := fixedSlots.ScheduleDate(template.ID, tomorrow); err != nil {
		log.Fatalf("Failed to schedule fixed slot date: %v", err)
	}

	log.Printf("Seeded user %s with wallet %s at station %s", user.Email, wallet.ID, station.Name)
}
