package coordinator

import "fmt"

func errNoSession(remote string) error {
	return fmt.Errorf("coordinator: no live session for %s", remote)
}
