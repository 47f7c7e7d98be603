/*
Package client implements the relay chat session: registration, sending
with per-message confirmation and the background receive loop.

The wire protocol has no framing or tags. One read is one frame and the
number of '|' separated fields decides what it is:

 1. The client sends its bare name. The server answers with one status
    code; 0 (ConnAccepted) registers the name.
 2. To send, the client writes "src|dest|body". The server forwards
    "src|body" to dest, waits for dest's 4 (MsgReceived) and answers the
    sender with 5 (MsgSuccess), 6 (MsgFailed) or 7 (InvalidDest).
 3. On receiving "src|body" the client reports the message and writes
    exactly one 4 back.
 4. A status code that arrives while a send is waiting resolves that send.
    Any other status code is a notification.
 5. The client leaves by writing 1 (Disconnect) and closing the socket.

All reads after the handshake happen in the receive loop; writes from
callers and from the loop share one lock.
*/
package client
