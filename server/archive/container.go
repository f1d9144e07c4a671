package archive

import "database/sql"

// Container wires the archive repository, service and handler on db.
func Container(db *sql.DB) (*Handler, *Service, error) {
	r, err := NewRepository(db)
	if err != nil {
		return nil, nil, err
	}
	s := NewService(r)
	return NewHandler(s), s, nil
}
