// Package workflow owns the test lifecycle: collection, screen results,
// confirmation decisions and results, and inconclusive marking.
//
// Every lifecycle change is persisted through Manager.SaveTest, which writes
// the record and its outbox row in one transaction. In inline dispatch mode
// the manager drains that row immediately, so notifications go out as part of
// the save. In worker mode the Run loop polls the outbox instead. Either way
// the notification pipeline sees each pending test at most once per revision
// and the outbox row is acknowledged only for the revision it evaluated.
package workflow
