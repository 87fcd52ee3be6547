// Package loans implements the loan lifecycle: creating loans from available
// copies and registering returns.
//
// A loan is Active until it is returned; Returned is terminal. Overdue is not
// a state. It is derived as "Active and due before now" each time rows are
// built and is never stored.
//
// Every mutation follows the same shape: guard, confirm where the action is
// irreversible, send, and only after the backend accepted it reload the loan
// history and the available-copy pool. The backend claims copies atomically,
// so two operators racing for the same copy see one success and one
// rejection, which is shown verbatim.
package loans
