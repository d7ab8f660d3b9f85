package rendezvous

// docsText is hand-written route documentation served at GET /docs. The
// rendezvous surface is fifteen routes (ten room routes, five admin
// routes), small enough that no markdown
// rendering pipeline is warranted — these
// pages are not rendered from files at runtime.
const docsText = `junowen-net rendezvous service

Shared room:
  PUT    /custom/{name}        {"offer": "<...>"}  -> 201 {key} | 201 {answer} | 409 {offer}
  POST   /custom/{name}/keep   {"key": "..."}       -> 204 | 200 {answer} | 400
  POST   /custom/{name}/join   {"answer": "<...>"}  -> 201 | 409
  DELETE /custom/{name}        {"key": "..."}       -> 204 | 400

Reserved room (adds):
  PUT    /reserved-room/{name}            {"offer": "<...>"}
  GET    /reserved-room/{name}            -> 200 {opponent_offer?, spectator_offer?}
  POST   /reserved-room/{name}/spectate   {"answer": "<...>"} -> 201 | 409
  POST   /reserved-room/{name}/keep       {"key": "...", "spectator_offer": "<...>"?}
                                           -> 204 | 200 {kind, answer} | 400
  POST   /reserved-room/{name}/join       {"answer": "<...>"} -> 201 | 409
  DELETE /reserved-room/{name}            {"key": "..."}      -> 204 | 400

Admin (read-only):
  GET /healthz
  GET /debug/rooms?name={name}
  GET /debug/spectators?name={name}   (websocket)

PUT and keep responses carry a Retry-After header; clients MUST wait that
many seconds before retrying keep. Responses of the other routes carry no
Retry-After header.
`
