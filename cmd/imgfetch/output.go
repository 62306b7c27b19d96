package main

import (
	"fmt"

	"imgfetch/pkg/models"
	"imgfetch/pkg/notify"
)

func printInfo(label, value string) {
	fmt.Printf("%s %s\n", notify.Cyan(label+":"), value)
}

func printImages(images []models.Image) {
	if len(images) == 0 {
		fmt.Println(notify.Dim("no images"))
		return
	}
	for _, img := range images {
		line := fmt.Sprintf("%-8s %s", img.ID, img.Title)
		if img.Category != "" {
			line += " " + notify.Magenta("["+img.Category+"]")
		}
		fmt.Println(line)
		fmt.Println(notify.Dim("         " + img.URL))
	}
}

func printCategories(categories []models.Category, selected map[string]bool) {
	if len(categories) == 0 {
		fmt.Println(notify.Dim("no categories"))
		return
	}
	for _, c := range categories {
		mark := " "
		if selected[c.Name] {
			mark = notify.Green("*")
		}
		fmt.Printf("%s %-24s %s\n", mark, c.Name, notify.Dim(c.GalleryURL))
	}
}
