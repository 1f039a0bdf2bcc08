package command

import (
	"fmt"
	"strconv"
)

// PageNumber pops a trailing numeric argument and returns it as a page
// number. It returns 1 when there is none.
func PageNumber(args []string) (int, []string) {
	if len(args) == 0 {
		return 1, args
	}
	n, err := strconv.Atoi(args[len(args)-1])
	if err != nil {
		return 1, args
	}
	return n, args[:len(args)-1]
}

// Paginate sends one page of lines to s. lines[0] is the header and is
// repeated on every page. A height <= 0 sends everything at once.
func Paginate(s Sender, page, height int, lines []string) {
	if len(lines) == 0 {
		return
	}
	hdr, body := lines[0], lines[1:]

	if height <= 0 || len(body) == 0 {
		s.SendMessage(hdr)
		for _, ln := range body {
			s.SendMessage(ln)
		}
		return
	}

	pages := (len(body) + height - 1) / height
	page = max(1, min(page, pages))

	s.SendMessage(fmt.Sprintf("%s - Page %d of %d", hdr, page, pages))
	for _, ln := range body[(page-1)*height : min(page*height, len(body))] {
		s.SendMessage(ln)
	}
}
