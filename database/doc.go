// Package database opens GORM connections for components that read from
// relational databases. Drivers are picked from the configured driver name,
// which may be a short name ("sqlite") or a JDBC driver class
// ("org.sqlite.JDBC"); JDBC style URLs ("jdbc:sqlite:/data/x.db") are
// accepted as DSNs.
package database
