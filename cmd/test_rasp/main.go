package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/Freeeeeet/rasp_bot/internal/format"
	"github.com/Freeeeeet/rasp_bot/internal/model"
	"github.com/Freeeeeet/rasp_bot/internal/rasp"
	"go.uber.org/zap"
)

// Печатает расписание студента из публичного API так, как его увидит календарь
func main() {
	studentID := flag.Int64("student", 0, "ID студента")
	origin := flag.String("origin", "https://edu.donstu.ru/", "адрес API расписания")
	flag.Parse()

	if *studentID == 0 {
		fmt.Fprintln(os.Stderr, "usage: test_rasp -student <id>")
		os.Exit(2)
	}

	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	client := rasp.NewClient(rasp.Options{Origin: *origin, Location: loc}, nil, zap.NewNop())
	window := model.TwoMonthWindow(time.Now(), loc)
	ctx := context.Background()

	hash, err := client.RaspHash(ctx, *studentID, window)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash:", err)
		os.Exit(1)
	}

	events, err := client.ReserveRasp(ctx, *studentID, window)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rasp:", err)
		os.Exit(1)
	}

	fmt.Printf("Окно: %s - %s\nХэш: %s\nЗанятий: %d\n\n",
		window.Start.Format("02.01.2006"), window.End.Format("02.01.2006"), hash, len(events))

	for _, ev := range events {
		fmt.Printf("%s  %s-%s  [%s] %s\n    %s\n",
			ev.IdentityKey[:8],
			ev.Start.In(loc).Format("02.01 15:04"),
			ev.End.In(loc).Format("15:04"),
			ev.ColorID,
			ev.Title,
			format.ISOTime(ev.Start),
		)
	}
}
