package websocket

import (
	"github.com/labstack/echo/v4"
)

// Handler upgrades the "/ws" endpoint and parks the connection until the
// client goes away.
func (s *Server) Handler(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	userID, _ := c.Get("user_id").(int)

	client := NewClient(conn, userID)
	s.hub.Register(client)
	client.Run()

	defer s.hub.Unregister(client)

	<-client.Context().Done()

	return nil
}
